package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
)

// Notifier отправляет уведомления о бронированиях после коммита.
// Ошибки доставки только логируются: переход статуса уже зафиксирован.
type Notifier struct {
	sender  notify.Sender
	users   UserRepository
	timeout time.Duration
	loc     *time.Location
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewNotifier(sender notify.Sender, users UserRepository, timeout time.Duration, loc *time.Location, logger *zap.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		sender:  sender,
		users:   users,
		timeout: timeout,
		loc:     loc,
		logger:  logger,
	}
}

// BookingEvent ставит уведомление в фон и сразу возвращается.
func (n *Notifier) BookingEvent(ctx context.Context, kind notify.Kind, booking *model.Booking) {
	if n == nil || n.sender == nil {
		return
	}

	b := *booking
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		n.deliver(ctx, kind, &b)
	}()
}

// Wait дожидается отправки всех поставленных уведомлений. Нужен при остановке и в тестах.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, kind notify.Kind, booking *model.Booking) {
	recipients, err := n.recipients(ctx, kind, booking)
	if err != nil {
		n.logger.Warn("Failed to resolve notification recipients",
			zap.Int64("booking_id", booking.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}

	subject, text := n.render(kind, booking)
	for _, to := range recipients {
		msg := notify.NewMessage(kind, booking.ID, to, subject, text)
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Warn("Failed to send notification",
				zap.Stringer("message_id", msg.ID),
				zap.Int64("booking_id", booking.ID),
				zap.Int64("user_id", to.ID),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}
}

// recipients: запрос на бронирование получает учитель, остальное - все стороны.
func (n *Notifier) recipients(ctx context.Context, kind notify.Kind, booking *model.Booking) ([]*model.User, error) {
	teacher, err := n.users.GetByID(ctx, booking.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if kind == notify.KindBookingRequested {
		return []*model.User{teacher}, nil
	}

	student, err := n.users.GetByID(ctx, booking.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	out := []*model.User{teacher, student}

	if student.GuardianID != nil {
		guardian, err := n.users.GetByID(ctx, *student.GuardianID)
		if err != nil {
			return nil, fmt.Errorf("get guardian: %w", err)
		}
		out = append(out, guardian)
	}
	return out, nil
}

func (n *Notifier) render(kind notify.Kind, booking *model.Booking) (string, string) {
	when := notify.FormatLessonTime(booking.StartTime.In(n.loc))
	length := notify.FormatDuration(booking.DurationMinutes())

	switch kind {
	case notify.KindBookingRequested:
		return "Новая заявка на занятие", fmt.Sprintf("Занятие %s (%s) ждёт вашего подтверждения.", when, length)
	case notify.KindBookingConfirmed:
		text := fmt.Sprintf("Занятие %s (%s) подтверждено.", when, length)
		if booking.DebitedMinutes > 0 {
			text += fmt.Sprintf(" Списано %d %s.", booking.DebitedMinutes, notify.PluralizeMinutes(booking.DebitedMinutes))
		}
		return "Занятие подтверждено", text
	case notify.KindBookingCanceled:
		return "Занятие отменено", fmt.Sprintf("Занятие %s отменено.", when)
	case notify.KindBookingReminder:
		return "Напоминание о занятии", fmt.Sprintf("Напоминаем: занятие %s (%s).", when, length)
	}
	return string(kind), when
}
