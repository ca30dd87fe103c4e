package notify

import (
	"fmt"
	"time"
)

var weekdayNames = [...]string{
	"воскресенье",
	"понедельник",
	"вторник",
	"среда",
	"четверг",
	"пятница",
	"суббота",
}

// FormatLessonTime "понедельник, 02.09.2024 10:00 MSK"
func FormatLessonTime(t time.Time) string {
	return fmt.Sprintf("%s, %s", weekdayNames[t.Weekday()], t.Format("02.01.2006 15:04 MST"))
}

// FormatDuration длительность в минутах: "45 мин", "1 ч", "1 ч 30 мин"
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

// PluralizeMinutes возвращает правильное склонение слова "минута"
func PluralizeMinutes(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "минута"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "минуты"
	}
	return "минут"
}
