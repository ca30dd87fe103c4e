package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatLessonTime(t *testing.T) {
	ts := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "понедельник, 02.09.2024 10:00 UTC", FormatLessonTime(ts))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 мин", FormatDuration(45))
	assert.Equal(t, "1 ч", FormatDuration(60))
	assert.Equal(t, "1 ч 30 мин", FormatDuration(90))
}

func TestPluralizeMinutes(t *testing.T) {
	cases := map[int]string{
		1:   "минута",
		2:   "минуты",
		5:   "минут",
		11:  "минут",
		21:  "минута",
		24:  "минуты",
		112: "минут",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeMinutes(n), n)
	}
}
