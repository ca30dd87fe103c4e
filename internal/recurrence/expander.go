// Package recurrence разворачивает смену учителя в конечную последовательность
// конкретных интервалов. Пакет не делает I/O.
package recurrence

import (
	"iter"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// maxOccurrences ограничивает число вхождений, отдаваемых за один вызов.
const maxOccurrences = 1000

// Window полуинтервал [Start, End), в котором материализуются слоты.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow создаёт скользящее окно генерации от now на horizon вперёд.
func NewWindow(now time.Time, horizon time.Duration) Window {
	return Window{Start: now, End: now.Add(horizon)}
}

// Contains проверяет попадание момента в окно.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Occurrence один конкретный интервал смены.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// ParseRule разбирает тело RRULE и проверяет частоту. Префикс "RRULE:"
// допускается. Частоты чаще суточной запрещены: время суток задаёт смена.
func ParseRule(rule string) (*rrule.ROption, error) {
	body := strings.TrimSpace(rule)
	body = strings.TrimPrefix(body, "RRULE:")
	if body == "" {
		return nil, apperr.Validation("recurrence rule is empty")
	}
	if !strings.Contains(strings.ToUpper(body), "FREQ=") {
		return nil, apperr.Validation("recurrence rule %q: FREQ is required", rule)
	}

	opt, err := rrule.StrToROption(body)
	if err != nil {
		return nil, apperr.Validation("invalid recurrence rule %q: %v", rule, err)
	}

	switch opt.Freq {
	case rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY:
	default:
		return nil, apperr.Validation("recurrence rule %q: frequency must be daily or coarser", rule)
	}
	if opt.Interval < 0 {
		return nil, apperr.Validation("recurrence rule %q: interval must be positive", rule)
	}

	return opt, nil
}

// ValidateShift проверяет интервал смены и её правило.
func ValidateShift(shift *model.Shift) error {
	if shift.StartTime.IsZero() || shift.EndTime.IsZero() {
		return apperr.Validation("shift start and end are required")
	}
	if !shift.EndTime.After(shift.StartTime) {
		return apperr.Validation("shift end must be after start")
	}
	if shift.Duration() > 24*time.Hour {
		return apperr.Validation("shift must not be longer than 24h")
	}
	if shift.IsRecurring() {
		if _, err := ParseRule(shift.RecurrenceRule); err != nil {
			return err
		}
	}
	return nil
}

// Expand возвращает ленивую последовательность вхождений смены.
//
// Без правила последовательность состоит ровно из одного интервала самой
// смены, окно не учитывается. С правилом правило выбирает только даты, а
// время суток и длительность переносятся со смены; вхождения вне окна
// пропускаются.
func Expand(shift *model.Shift, w Window) (iter.Seq[Occurrence], error) {
	if err := ValidateShift(shift); err != nil {
		return nil, err
	}

	if !shift.IsRecurring() {
		single := Occurrence{Start: shift.StartTime, End: shift.EndTime}
		return func(yield func(Occurrence) bool) {
			yield(single)
		}, nil
	}

	opt, err := ParseRule(shift.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = shift.StartTime

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, apperr.Validation("invalid recurrence rule %q: %v", shift.RecurrenceRule, err)
	}

	loc := shift.StartTime.Location()
	duration := shift.Duration()

	return func(yield func(Occurrence) bool) {
		next := rule.Iterator()
		for yielded := 0; yielded < maxOccurrences; {
			day, ok := next()
			if !ok {
				return
			}

			start := atTimeOfDay(day.In(loc), shift.StartTime)
			if !start.Before(w.End) {
				return
			}
			if start.Before(w.Start) {
				continue
			}

			if !yield(Occurrence{Start: start, End: start.Add(duration)}) {
				return
			}
			yielded++
		}
	}, nil
}

// Collect разворачивает смену в срез.
func Collect(shift *model.Shift, w Window) ([]Occurrence, error) {
	seq, err := Expand(shift, w)
	if err != nil {
		return nil, err
	}

	var out []Occurrence
	for occ := range seq {
		out = append(out, occ)
	}
	return out, nil
}

// atTimeOfDay переносит время суток ref на календарную дату day.
func atTimeOfDay(day, ref time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}
