package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
)

type BookingService struct {
	tx           Transactor
	slots        SlotRepository
	bookings     BookingRepository
	users        UserRepository
	ledger       *LedgerService
	notifier     *Notifier
	reminderLead time.Duration
	now          Clock
	logger       *zap.Logger
}

func NewBookingService(
	tx Transactor,
	slots SlotRepository,
	bookings BookingRepository,
	users UserRepository,
	ledger *LedgerService,
	notifier *Notifier,
	reminderLead time.Duration,
	now Clock,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:           tx,
		slots:        slots,
		bookings:     bookings,
		users:        users,
		ledger:       ledger,
		notifier:     notifier,
		reminderLead: reminderLead,
		now:          now,
		logger:       logger,
	}
}

// Create бронирует слот для студента. Студент бронирует за себя,
// опекун передаёт studentID своего студента.
func (s *BookingService) Create(ctx context.Context, actor model.Actor, slotID, studentID int64) (*model.Booking, error) {
	studentID, err := s.bookingStudent(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.SlotStart.After(s.now()) {
		return nil, apperr.Validation("slot %d is in the past", slotID)
	}
	if !slot.IsBookable {
		return nil, apperr.SlotUnavailable()
	}

	requiresApproval, err := s.requiresApproval(ctx, slot.TeacherID)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		TeacherID: slot.TeacherID,
		StudentID: studentID,
		SlotID:    slot.ID,
		StartTime: slot.SlotStart,
		EndTime:   slot.SlotEnd,
		Status:    model.BookingStatusConfirmed,
		CreatedBy: actor.UserID,
	}
	if requiresApproval {
		booking.Status = model.BookingStatusPending
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.slots.Claim(ctx, slot.ID)
		if err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}
		if !claimed {
			return apperr.SlotUnavailable()
		}

		if booking.Status == model.BookingStatusConfirmed {
			if err := s.ledger.DebitForBooking(ctx, booking); err != nil {
				return err
			}
		}

		return s.bookings.Create(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", booking.StudentID),
		zap.Int64("slot_id", booking.SlotID),
		zap.Int64("created_by", booking.CreatedBy),
		zap.String("status", string(booking.Status)))

	if booking.Status == model.BookingStatusPending {
		s.notifier.BookingEvent(ctx, notify.KindBookingRequested, booking)
	} else {
		s.notifier.BookingEvent(ctx, notify.KindBookingConfirmed, booking)
	}

	return booking, nil
}

// Approve подтверждает pending-бронирование и списывает минуты
func (s *BookingService) Approve(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.teacherBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !booking.StartTime.After(s.now()) {
		return nil, apperr.Conflict("lesson has already started")
	}

	from := booking.Status
	if booking.Status, err = next(booking, model.BookingEventApprove); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.DebitForBooking(ctx, booking); err != nil {
			return err
		}
		return s.save(ctx, booking, from)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking approved", zap.Int64("booking_id", booking.ID))
	s.notifier.BookingEvent(ctx, notify.KindBookingConfirmed, booking)

	return booking, nil
}

// Reject отклоняет pending-бронирование и освобождает слот
func (s *BookingService) Reject(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.teacherBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	from := booking.Status
	if booking.Status, err = next(booking, model.BookingEventReject); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.save(ctx, booking, from); err != nil {
			return err
		}
		return s.reopen(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking rejected", zap.Int64("booking_id", booking.ID))
	s.notifier.BookingEvent(ctx, notify.KindBookingCanceled, booking)

	return booking, nil
}

// Cancel отменяет бронирование до начала занятия: слот снова свободен,
// списанные минуты возвращаются на тот же баланс.
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canManage(ctx, actor, booking)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.Forbidden("not allowed to cancel booking %d", id)
	}
	if !s.now().Before(booking.StartTime) {
		return nil, apperr.Conflict("lesson has already started")
	}

	from := booking.Status
	if booking.Status, err = next(booking, model.BookingEventCancel); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.RefundBooking(ctx, booking); err != nil {
			return err
		}
		if err := s.save(ctx, booking, from); err != nil {
			return err
		}
		return s.reopen(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking canceled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("canceled_by", actor.UserID),
		zap.String("from", string(from)))
	s.notifier.BookingEvent(ctx, notify.KindBookingCanceled, booking)

	return booking, nil
}

// Get возвращает бронирование участнику или администратору
func (s *BookingService) Get(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canManage(ctx, actor, booking)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.Forbidden("not allowed to view booking %d", id)
	}
	return booking, nil
}

// List возвращает бронирования учителя или студента
func (s *BookingService) List(ctx context.Context, actor model.Actor) ([]*model.Booking, error) {
	switch actor.Role {
	case model.RoleTeacher:
		return s.bookings.GetByTeacherID(ctx, actor.UserID)
	case model.RoleStudent:
		return s.bookings.GetByStudentID(ctx, actor.UserID)
	}
	return nil, apperr.Forbidden("role %q has no booking list", actor.Role)
}

// CompletePast переводит прошедшие подтверждённые занятия в done
func (s *BookingService) CompletePast(ctx context.Context) (int, error) {
	ended, err := s.bookings.GetConfirmedEndedBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("get ended bookings: %w", err)
	}

	completed := 0
	for _, booking := range ended {
		status, err := next(booking, model.BookingEventComplete)
		if err != nil {
			continue
		}
		booking.Status = status

		ok, err := s.bookings.UpdateStatus(ctx, booking, model.BookingStatusConfirmed)
		if err != nil {
			return completed, fmt.Errorf("complete booking %d: %w", booking.ID, err)
		}
		if ok {
			completed++
		}
	}

	if completed > 0 {
		s.logger.Info("Past bookings completed", zap.Int("count", completed))
	}
	return completed, nil
}

// SendReminders напоминает о подтверждённых занятиях, начинающихся в ближайшие reminderLead.
// Каждое напоминание отправляется один раз.
func (s *BookingService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()

	due, err := s.bookings.GetDueReminders(ctx, now, now.Add(s.reminderLead))
	if err != nil {
		return 0, fmt.Errorf("get due reminders: %w", err)
	}

	sent := 0
	for _, booking := range due {
		marked, err := s.bookings.MarkReminded(ctx, booking.ID, now)
		if err != nil {
			return sent, fmt.Errorf("mark booking %d reminded: %w", booking.ID, err)
		}
		if !marked {
			continue
		}

		s.notifier.BookingEvent(ctx, notify.KindBookingReminder, booking)
		sent++
	}

	if sent > 0 {
		s.logger.Info("Reminders queued", zap.Int("count", sent))
	}
	return sent, nil
}

func next(booking *model.Booking, ev model.BookingEvent) (model.BookingStatus, error) {
	status, ok := model.NextBookingStatus(booking.Status, ev)
	if !ok {
		return "", apperr.Conflict("cannot %s a %s booking", ev, booking.Status)
	}
	return status, nil
}

// save записывает переход; если статус успели изменить параллельно, откатывает транзакцию.
func (s *BookingService) save(ctx context.Context, booking *model.Booking, from model.BookingStatus) error {
	ok, err := s.bookings.UpdateStatus(ctx, booking, from)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("booking %d was changed concurrently", booking.ID)
	}
	return nil
}

func (s *BookingService) reopen(ctx context.Context, booking *model.Booking) error {
	if booking.SlotID == 0 {
		return nil
	}
	reopened, err := s.slots.Reopen(ctx, booking.SlotID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("reopen slot: %w", err)
	}
	if !reopened {
		s.logger.Info("Slot of a retracted shift removed instead of reopening",
			zap.Int64("slot_id", booking.SlotID),
			zap.Int64("booking_id", booking.ID))
	}
	return nil
}

func (s *BookingService) bookingStudent(ctx context.Context, actor model.Actor, studentID int64) (int64, error) {
	switch actor.Role {
	case model.RoleStudent:
		if studentID != 0 && studentID != actor.UserID {
			return 0, apperr.Forbidden("students can only book for themselves")
		}
		return actor.UserID, nil
	case model.RoleGuardian:
		if studentID == 0 {
			return 0, apperr.Validation("student id is required")
		}
		ok, err := actsForStudent(ctx, s.users, actor, studentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, apperr.Forbidden("student %d is not in your care", studentID)
		}
		return studentID, nil
	}
	return 0, apperr.Forbidden("role %q cannot book lessons", actor.Role)
}

func (s *BookingService) requiresApproval(ctx context.Context, teacherID int64) (bool, error) {
	profile, err := s.users.GetTeacherProfile(ctx, teacherID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return profile.RequiresApproval, nil
}

func (s *BookingService) teacherBooking(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherOwner(actor, booking.TeacherID); err != nil {
		return nil, err
	}
	return booking, nil
}

// canManage: автор бронирования, студент, его опекун, учитель-владелец или администратор.
func (s *BookingService) canManage(ctx context.Context, actor model.Actor, booking *model.Booking) (bool, error) {
	if actor.Role == model.RoleAdmin || actor.UserID == booking.CreatedBy {
		return true, nil
	}
	if actor.Role == model.RoleTeacher {
		return actor.UserID == booking.TeacherID, nil
	}
	return actsForStudent(ctx, s.users, actor, booking.StudentID)
}
