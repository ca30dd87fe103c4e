package memory

import (
	"cmp"
	"context"
	"strings"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	u, ok := r.db.data.users[id]
	if !ok {
		return nil, apperr.NotFound("user %d not found", id)
	}
	c := *u
	return &c, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	email = strings.TrimSpace(email)
	for _, u := range r.db.data.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperr.NotFound("user with email %q not found", email)
}

func (r *UserRepository) GetFirstStudentOfGuardian(ctx context.Context, guardianID int64) (*model.User, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	var first *model.User
	for _, u := range r.db.data.users {
		if u.Role != model.RoleStudent || u.GuardianID == nil || *u.GuardianID != guardianID {
			continue
		}
		if first == nil || earlier(u, first) {
			first = u
		}
	}
	if first == nil {
		return nil, apperr.NotFound("guardian %d has no students", guardianID)
	}
	c := *first
	return &c, nil
}

func earlier(a, b *model.User) bool {
	if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
		return n < 0
	}
	return cmp.Less(a.ID, b.ID)
}

func (r *UserRepository) GetTeacherProfile(ctx context.Context, teacherID int64) (*model.TeacherProfile, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	p, ok := r.db.data.profiles[teacherID]
	if !ok {
		return nil, apperr.NotFound("teacher profile %d not found", teacherID)
	}
	c := *p
	return &c, nil
}

func (r *UserRepository) GetTeacherProfileByHandle(ctx context.Context, handle string) (*model.TeacherProfile, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	for _, p := range r.db.data.profiles {
		if p.Handle == handle {
			c := *p
			return &c, nil
		}
	}
	return nil, apperr.NotFound("teacher profile %s not found", handle)
}

func (r *UserRepository) UpsertTeacherProfile(ctx context.Context, profile *model.TeacherProfile) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	for _, p := range r.db.data.profiles {
		if p.Handle == profile.Handle && p.TeacherID != profile.TeacherID {
			return apperr.Conflict("handle %q is already taken", profile.Handle)
		}
	}

	c := *profile
	r.db.data.profiles[profile.TeacherID] = &c
	return nil
}
