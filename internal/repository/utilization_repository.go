package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

// UtilizationRepository агрегаты загрузки учителей, только чтение
type UtilizationRepository struct {
	*base.Repository
}

func NewUtilizationRepository(pool *pgxpool.Pool) *UtilizationRepository {
	return &UtilizationRepository{Repository: base.NewRepository(pool)}
}

// Utilization считает слоты и занятые бронирования по учителям за период
func (r *UtilizationRepository) Utilization(ctx context.Context, from, to time.Time, teacherID int64) ([]*model.TeacherUtilization, error) {
	query := `
		WITH slots AS (
			SELECT teacher_id, count(*) AS total
			FROM availability_slots
			WHERE slot_start >= $1 AND slot_start < $2
			  AND ($3::bigint = 0 OR teacher_id = $3)
			GROUP BY teacher_id
		), booked AS (
			SELECT teacher_id, count(*) AS booked
			FROM bookings
			WHERE status IN ('confirmed', 'done')
			  AND start_time >= $1 AND start_time < $2
			  AND ($3::bigint = 0 OR teacher_id = $3)
			GROUP BY teacher_id
		)
		SELECT COALESCE(s.teacher_id, b.teacher_id), COALESCE(s.total, 0), COALESCE(b.booked, 0)
		FROM slots s
		FULL OUTER JOIN booked b ON b.teacher_id = s.teacher_id
		ORDER BY 1
	`

	rows, err := r.Query(ctx, query, from, to, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query utilization: %w", err)
	}
	defer rows.Close()

	var result []*model.TeacherUtilization
	for rows.Next() {
		var u model.TeacherUtilization
		if err := rows.Scan(&u.TeacherID, &u.TotalSlots, &u.SlotsBooked); err != nil {
			return nil, fmt.Errorf("scan utilization: %w", err)
		}
		result = append(result, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query utilization: %w", err)
	}

	return result, nil
}
