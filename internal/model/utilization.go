package model

// TeacherUtilization загрузка учителя за период.
type TeacherUtilization struct {
	TeacherID       int64   `json:"teacher_id"`
	TotalSlots      int     `json:"total_slots_generated"`
	SlotsBooked     int     `json:"slots_booked"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// ComputeRate заполняет UtilizationRate; при нуле слотов доля равна 0.
func (u *TeacherUtilization) ComputeRate() {
	if u.TotalSlots == 0 {
		u.UtilizationRate = 0
		return
	}
	u.UtilizationRate = float64(u.SlotsBooked) / float64(u.TotalSlots)
}
