package service

import (
	"context"
	"slices"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

func requireRole(actor model.Actor, roles ...model.Role) error {
	if slices.Contains(roles, actor.Role) {
		return nil
	}
	return apperr.Forbidden("role %q is not allowed to perform this action", actor.Role)
}

// requireTeacherOwner пропускает учителя-владельца и администратора.
func requireTeacherOwner(actor model.Actor, teacherID int64) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if actor.Role == model.RoleTeacher && actor.UserID == teacherID {
		return nil
	}
	return apperr.Forbidden("only the owning teacher can do this")
}

// actsForStudent сообщает, что actor - сам студент или его опекун.
func actsForStudent(ctx context.Context, users UserRepository, actor model.Actor, studentID int64) (bool, error) {
	switch actor.Role {
	case model.RoleStudent:
		return actor.UserID == studentID, nil
	case model.RoleGuardian:
		student, err := users.GetByID(ctx, studentID)
		if err != nil {
			if apperr.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return student.GuardianID != nil && *student.GuardianID == actor.UserID, nil
	}
	return false, nil
}
