package model

import (
	"strconv"
	"time"
)

// SlotSourceManual источник слота, созданного учителем вручную.
const SlotSourceManual = "manual"

type AvailabilitySlot struct {
	ID         int64     `json:"id"`
	TeacherID  int64     `json:"teacher_id"`
	SlotStart  time.Time `json:"slot_start"`
	SlotEnd    time.Time `json:"slot_end"`
	ShiftID    *int64    `json:"shift_id"` // nil - слот ручной
	IsBookable bool      `json:"is_bookable"`
	CreatedAt  time.Time `json:"created_at"`
}

// Source возвращает "manual" или "shift:<id>".
func (s *AvailabilitySlot) Source() string {
	if s.ShiftID == nil {
		return SlotSourceManual
	}
	return ShiftSource(*s.ShiftID)
}

// Overlaps проверяет пересечение полуинтервалов [start, end).
func (s *AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return s.SlotStart.Before(end) && start.Before(s.SlotEnd)
}

// ShiftSource тег источника для слотов, сгенерированных сменой.
func ShiftSource(shiftID int64) string {
	return "shift:" + strconv.FormatInt(shiftID, 10)
}
