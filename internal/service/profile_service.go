package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// PublicProfile то, что видит анонимный посетитель страницы учителя.
type PublicProfile struct {
	TeacherID   int64                     `json:"teacher_id"`
	Handle      string                    `json:"handle"`
	DisplayName string                    `json:"display_name"`
	Slots       []*model.AvailabilitySlot `json:"slots"`
	Products    []*model.TicketProduct    `json:"products"`
}

// ProfileService профиль учителя и публичная страница.
type ProfileService struct {
	users      UserRepository
	slots      SlotRepository
	tickets    TicketRepository
	slotsLimit int
	horizon    time.Duration
	now        Clock
	logger     *zap.Logger
}

func NewProfileService(
	users UserRepository,
	slots SlotRepository,
	tickets TicketRepository,
	slotsLimit int,
	horizon time.Duration,
	now Clock,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		users:      users,
		slots:      slots,
		tickets:    tickets,
		slotsLimit: slotsLimit,
		horizon:    horizon,
		now:        now,
		logger:     logger,
	}
}

// UpsertProfile сохраняет настройки учителя
func (s *ProfileService) UpsertProfile(ctx context.Context, actor model.Actor, profile model.TeacherProfile) (*model.TeacherProfile, error) {
	if err := requireRole(actor, model.RoleTeacher); err != nil {
		return nil, err
	}
	if profile.Handle == "" {
		return nil, apperr.Validation("handle is required")
	}

	profile.TeacherID = actor.UserID
	if err := s.users.UpsertTeacherProfile(ctx, &profile); err != nil {
		return nil, err
	}

	s.logger.Info("Teacher profile saved",
		zap.Int64("teacher_id", profile.TeacherID),
		zap.String("handle", profile.Handle),
		zap.Bool("requires_approval", profile.RequiresApproval),
		zap.Bool("published", profile.Published))

	return &profile, nil
}

// Public собирает публичную страницу учителя по хэндлу. Неопубликованный профиль не виден.
func (s *ProfileService) Public(ctx context.Context, handle string) (*PublicProfile, error) {
	profile, err := s.users.GetTeacherProfileByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if !profile.Published {
		return nil, apperr.NotFound("teacher profile %s not found", handle)
	}

	teacher, err := s.users.GetByID(ctx, profile.TeacherID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	slots, err := s.slots.ListBookable(ctx, profile.TeacherID, now, now.Add(s.horizon), s.slotsLimit)
	if err != nil {
		return nil, err
	}

	products, err := s.tickets.GetActiveProducts(ctx, profile.TeacherID)
	if err != nil {
		return nil, err
	}

	if slots == nil {
		slots = []*model.AvailabilitySlot{}
	}
	if products == nil {
		products = []*model.TicketProduct{}
	}

	return &PublicProfile{
		TeacherID:   profile.TeacherID,
		Handle:      profile.Handle,
		DisplayName: teacher.DisplayName,
		Slots:       slots,
		Products:    products,
	}, nil
}
