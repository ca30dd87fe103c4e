package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
)

// Services сервисы, которые обслуживает HTTP-слой
type Services struct {
	Schedule    *service.ScheduleService
	Bookings    *service.BookingService
	Ledger      *service.LedgerService
	Utilization *service.UtilizationService
	Profiles    *service.ProfileService
}

// Handler держит зависимости всех HTTP-обработчиков
type Handler struct {
	svc        Services
	validate   *validator.Validate
	now        service.Clock
	slotsLimit int
	logger     *zap.Logger
}

// NewHandler slotsLimit ограничивает размер выдачи свободных слотов
func NewHandler(svc Services, slotsLimit int, now service.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		svc:        svc,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        now,
		slotsLimit: slotsLimit,
		logger:     logger,
	}
}

// =============================================================================
// SHIFTS & SLOTS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.svc.Schedule.ListShifts(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	shift, generated, err := h.svc.Schedule.CreateShift(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ShiftResponse{Shift: shift, Generated: generated})
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req ShiftRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	shift, generated, err := h.svc.Schedule.UpdateShift(r.Context(), actorFrom(r.Context()), id, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShiftResponse{Shift: shift, Generated: generated})
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.svc.Schedule.DeleteShift(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExpandShift(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	generated, err := h.svc.Schedule.ExpandShift(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpandResponse{Generated: generated})
}

func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	slot, err := h.svc.Schedule.CreateManualSlot(r.Context(), actorFrom(r.Context()), req.StartTime, req.EndTime)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (h *Handler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.svc.Schedule.DeleteSlot(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBookable свободные слоты учителя, ?from&to в RFC 3339, ?limit
func (h *Handler) ListBookable(w http.ResponseWriter, r *http.Request) {
	teacherID, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	from, to, err := queryPeriod(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	limit, err := queryLimit(r, h.slotsLimit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	slots, err := h.svc.Schedule.ListBookable(r.Context(), teacherID, from, to, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.Bookings.List(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponses(bookings, h.now()))
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	booking, err := h.svc.Bookings.Create(r.Context(), actorFrom(r.Context()), req.SlotID, req.StudentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking, h.now()))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.svc.Bookings.Get)
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.svc.Bookings.Approve)
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.svc.Bookings.Reject)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.svc.Bookings.Cancel)
}

func (h *Handler) bookingAction(w http.ResponseWriter, r *http.Request, action bookingFunc) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	booking, err := action(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking, h.now()))
}

// =============================================================================
// PROFILE & REPORTS
// =============================================================================

func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	profile, err := h.svc.Profiles.UpsertProfile(r.Context(), actorFrom(r.Context()), model.TeacherProfile{
		Handle:           req.Handle,
		RequiresApproval: req.RequiresApproval,
		Published:        req.Published,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PublicProfile анонимная страница учителя, без аутентификации
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Profiles.Public(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) UtilizationReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryPeriod(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rows, err := h.svc.Utilization.Report(r.Context(), actorFrom(r.Context()), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) TeacherUtilization(w http.ResponseWriter, r *http.Request) {
	teacherID, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	from, to, err := queryPeriod(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	row, err := h.svc.Utilization.ForTeacher(r.Context(), actorFrom(r.Context()), teacherID, from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

type bookingFunc func(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error)
