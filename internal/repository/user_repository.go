package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

const userColumns = `id, email, display_name, role, guardian_id, telegram_chat_id, created_at`

// UserRepository читает справочник пользователей и профили учителей
type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

func scanUser(row rowScanner) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.GuardianID,
		&user.TelegramChatID,
		&user.CreatedAt,
	)
	return &user, err
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("user %d not found", id)
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// GetByEmail получает пользователя по email без учёта регистра
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`

	user, err := scanUser(r.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("user with email %q not found", email)
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// GetFirstStudentOfGuardian получает самого раннего зарегистрированного студента опекуна
func (r *UserRepository) GetFirstStudentOfGuardian(ctx context.Context, guardianID int64) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE guardian_id = $1 AND role = 'student'
		ORDER BY created_at, id
		LIMIT 1
	`

	user, err := scanUser(r.QueryRow(ctx, query, guardianID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("guardian %d has no students", guardianID)
		}
		return nil, fmt.Errorf("get student of guardian: %w", err)
	}

	return user, nil
}

// GetTeacherProfile получает профиль учителя
func (r *UserRepository) GetTeacherProfile(ctx context.Context, teacherID int64) (*model.TeacherProfile, error) {
	query := `SELECT teacher_id, handle, requires_approval, published FROM teacher_profiles WHERE teacher_id = $1`

	return r.profile(ctx, query, teacherID)
}

// GetTeacherProfileByHandle получает профиль по публичному хэндлу
func (r *UserRepository) GetTeacherProfileByHandle(ctx context.Context, handle string) (*model.TeacherProfile, error) {
	query := `SELECT teacher_id, handle, requires_approval, published FROM teacher_profiles WHERE handle = $1`

	return r.profile(ctx, query, handle)
}

func (r *UserRepository) profile(ctx context.Context, query string, arg any) (*model.TeacherProfile, error) {
	var p model.TeacherProfile
	err := r.QueryRow(ctx, query, arg).Scan(&p.TeacherID, &p.Handle, &p.RequiresApproval, &p.Published)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("teacher profile %v not found", arg)
		}
		return nil, fmt.Errorf("get teacher profile: %w", err)
	}

	return &p, nil
}

// UpsertTeacherProfile создаёт или обновляет профиль учителя
func (r *UserRepository) UpsertTeacherProfile(ctx context.Context, profile *model.TeacherProfile) error {
	query := `
		INSERT INTO teacher_profiles (teacher_id, handle, requires_approval, published)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (teacher_id) DO UPDATE
		SET handle = EXCLUDED.handle,
		    requires_approval = EXCLUDED.requires_approval,
		    published = EXCLUDED.published
	`

	_, err := r.ExecAffected(ctx, query, profile.TeacherID, profile.Handle, profile.RequiresApproval, profile.Published)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperr.Conflict("handle %q is already taken", profile.Handle)
		}
		return fmt.Errorf("upsert teacher profile: %w", err)
	}

	return nil
}
