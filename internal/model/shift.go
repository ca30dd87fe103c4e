package model

import "time"

// Shift шаблон доступности учителя: разовый или повторяющийся по RRULE.
// Время суток и длительность слотов всегда берутся из StartTime/EndTime.
type Shift struct {
	ID             int64     `json:"id"`
	TeacherID      int64     `json:"teacher_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	RecurrenceRule string    `json:"recurrence_rule"` // тело RRULE, например FREQ=WEEKLY;INTERVAL=2
	Published      bool      `json:"published"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsRecurring проверяет наличие правила повторения.
func (s *Shift) IsRecurring() bool {
	return s.RecurrenceRule != ""
}

// Duration длительность одного занятия.
func (s *Shift) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
