package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// UtilizationService отчёт о загрузке учителей. Только чтение.
type UtilizationService struct {
	repo UtilizationRepository
}

func NewUtilizationService(repo UtilizationRepository) *UtilizationService {
	return &UtilizationService{repo: repo}
}

// Report загрузка всех учителей за [from, to)
func (s *UtilizationService) Report(ctx context.Context, actor model.Actor, from, to time.Time) ([]*model.TeacherUtilization, error) {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	rows, err := s.repo.Utilization(ctx, from, to, 0)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		row.ComputeRate()
	}
	if rows == nil {
		rows = []*model.TeacherUtilization{}
	}
	return rows, nil
}

// ForTeacher загрузка одного учителя; учитель без слотов получает нулевую строку
func (s *UtilizationService) ForTeacher(ctx context.Context, actor model.Actor, teacherID int64, from, to time.Time) (*model.TeacherUtilization, error) {
	if err := requireTeacherOwner(actor, teacherID); err != nil {
		return nil, err
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	rows, err := s.repo.Utilization(ctx, from, to, teacherID)
	if err != nil {
		return nil, err
	}

	row := &model.TeacherUtilization{TeacherID: teacherID}
	if len(rows) > 0 {
		row = rows[0]
	}
	row.ComputeRate()
	return row, nil
}

func validatePeriod(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperr.Validation("period start and end are required")
	}
	if !to.After(from) {
		return apperr.Validation("period end must be after start")
	}
	return nil
}
