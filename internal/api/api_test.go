package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
)

var testNow = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	router   http.Handler
	db       *memory.DB
	notifier *service.Notifier
	now      time.Time

	admin   *model.User
	teacher *model.User
	student *model.User
	other   *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: testNow}
	clock := func() time.Time { return env.now }
	logger := zap.NewNop()
	horizon := 28 * 24 * time.Hour

	env.db = memory.NewDB().WithClock(clock)
	users := memory.NewUserRepository(env.db)
	slots := memory.NewSlotRepository(env.db)
	tickets := memory.NewTicketRepository(env.db)

	env.notifier = service.NewNotifier(notify.NewLogSender(logger), users, time.Second, time.UTC, logger)
	ledger := service.NewLedgerService(tickets, memory.NewBalanceRepository(env.db), users, service.DebitEarliestExpiry, clock, logger)

	svc := Services{
		Schedule: service.NewScheduleService(env.db, memory.NewShiftRepository(env.db), slots, horizon, time.UTC, clock, logger),
		Bookings: service.NewBookingService(env.db, slots, memory.NewBookingRepository(env.db), users, ledger,
			env.notifier, 24*time.Hour, clock, logger),
		Ledger:      ledger,
		Utilization: service.NewUtilizationService(memory.NewUtilizationRepository(env.db)),
		Profiles:    service.NewProfileService(users, slots, tickets, 20, horizon, clock, logger),
	}
	env.router = NewRouter(NewHandler(svc, 50, clock, logger), []string{"*"}, logger)

	env.admin = env.addUser(t, "admin@example.com", model.RoleAdmin)
	env.teacher = env.addUser(t, "teacher@example.com", model.RoleTeacher)
	env.student = env.addUser(t, "student@example.com", model.RoleStudent)
	env.other = env.addUser(t, "other@example.com", model.RoleStudent)

	t.Cleanup(env.notifier.Wait)
	return env
}

func (env *testEnv) addUser(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Email: email, DisplayName: email, Role: role}
	require.NoError(t, env.db.AddUser(context.Background(), u))
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, as *model.User, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set(headerUserID, strconv.FormatInt(as.ID, 10))
		req.Header.Set(headerUserRole, string(as.Role))
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (env *testEnv) createSlot(t *testing.T, start time.Time) *model.AvailabilitySlot {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/slots", env.teacher, SlotRequest{StartTime: start, EndTime: start.Add(time.Hour)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[*model.AvailabilitySlot](t, rec)
}

func (env *testEnv) createProduct(t *testing.T, minutes int) *model.TicketProduct {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/products", env.teacher, ProductRequest{
		Name: "Pack", Minutes: minutes, BundleQty: 1, PriceCents: 5000, ValidDays: 30, IsActive: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[*model.TicketProduct](t, rec)
}

func payment(ticketID int64, email, paymentID string) map[string]any {
	return map[string]any{
		"ticketId":   ticketID,
		"payerEmail": email,
		"amountPaid": "50.00",
		"paymentId":  paymentID,
	}
}

func TestAPI_RequiresIdentityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_PaymentWebhookIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t, 120)

	rec := env.do(t, http.MethodPost, "/webhooks/payments", nil, payment(product.ID, env.student.Email, "pay-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[PaymentResponse](t, rec)
	assert.False(t, first.Duplicate)
	assert.Equal(t, 120, first.Balance.RemainingMinutes)

	rec = env.do(t, http.MethodPost, "/webhooks/payments", nil, payment(product.ID, env.student.Email, "pay-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replay := decodeBody[PaymentResponse](t, rec)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Balance.ID, replay.Balance.ID)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/balances", env.student.ID), env.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[model.BalanceSummary](t, rec)
	assert.Equal(t, 120, summary.UsableMinutes)
	assert.Len(t, summary.Balances, 1)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/balances", env.student.ID), env.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_PaymentWebhookValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webhooks/payments", nil, map[string]any{
		"ticketId":   1,
		"payerEmail": "not-an-email",
		"amountPaid": "10",
		"paymentId":  "p",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	product := env.createProduct(t, 60)
	body := payment(product.ID, env.student.Email, "p-neg")
	body["amountPaid"] = "-1"
	rec = env.do(t, http.MethodPost, "/webhooks/payments", nil, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_BookingFlow(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t, 60)
	rec := env.do(t, http.MethodPost, "/webhooks/payments", nil, payment(product.ID, env.student.Email, "pay-flow"))
	require.Equal(t, http.StatusCreated, rec.Code)

	slot := env.createSlot(t, time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC))

	rec = env.do(t, http.MethodPost, "/api/bookings", env.student, BookingRequest{SlotID: slot.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[BookingResponse](t, rec)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, 60, booking.DebitedMinutes)

	// Слот уже занят
	rec = env.do(t, http.MethodPost, "/api/bookings", env.other, BookingRequest{SlotID: slot.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer available")

	rec = env.do(t, http.MethodGet, "/api/teachers/"+strconv.FormatInt(env.teacher.ID, 10)+"/slots", env.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]*model.AvailabilitySlot](t, rec))

	// После окончания занятия статус отдаётся как done
	env.now = time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/bookings/%d", booking.ID), env.student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusDone, decodeBody[BookingResponse](t, rec).Status)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/bookings/%d", booking.ID), env.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_CancelRefundsAndReopens(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t, 60)
	env.do(t, http.MethodPost, "/webhooks/payments", nil, payment(product.ID, env.student.Email, "pay-cancel"))
	slot := env.createSlot(t, time.Date(2024, 9, 11, 10, 0, 0, 0, time.UTC))

	rec := env.do(t, http.MethodPost, "/api/bookings", env.student, BookingRequest{SlotID: slot.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[BookingResponse](t, rec)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", booking.ID), env.student, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingStatusCanceled, decodeBody[BookingResponse](t, rec).Status)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", booking.ID), env.student, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/balances", env.student.ID), env.student, nil)
	assert.Equal(t, 60, decodeBody[model.BalanceSummary](t, rec).UsableMinutes)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/teachers/%d/slots", env.teacher.ID), env.student, nil)
	assert.Len(t, decodeBody[[]*model.AvailabilitySlot](t, rec), 1)
}

func TestAPI_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	slot := env.createSlot(t, time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC))

	rec := env.do(t, http.MethodPost, "/api/bookings", env.student, BookingRequest{SlotID: slot.ID})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	resp := decodeBody[InsufficientBalanceResponse](t, rec)
	assert.Equal(t, 60, resp.Requested)
	assert.Equal(t, 0, resp.Available)
}

func TestAPI_ShiftLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/shifts", env.teacher, ShiftRequest{
		StartTime:      time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2024, 9, 2, 11, 0, 0, 0, time.UTC),
		RecurrenceRule: "FREQ=WEEKLY",
		Published:      true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ShiftResponse](t, rec)
	assert.Positive(t, created.Generated)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/shifts/%d/expand", created.Shift.ID), env.teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeBody[ExpandResponse](t, rec).Generated)

	rec = env.do(t, http.MethodPost, "/api/shifts", env.student, ShiftRequest{
		StartTime: time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 9, 2, 11, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/shifts", env.teacher, ShiftRequest{
		StartTime: time.Date(2024, 9, 2, 11, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/shifts/%d", created.Shift.ID), env.teacher, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/teachers/%d/slots", env.teacher.ID), env.student, nil)
	assert.Empty(t, decodeBody[[]*model.AvailabilitySlot](t, rec))
}

func TestAPI_PublicProfile(t *testing.T) {
	env := newTestEnv(t)
	env.createSlot(t, time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC))
	env.createProduct(t, 60)

	rec := env.do(t, http.MethodPut, "/api/teachers/me/profile", env.teacher, ProfileRequest{Handle: "anna"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/public/teachers/anna", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/teachers/me/profile", env.teacher, ProfileRequest{Handle: "anna", Published: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/public/teachers/anna", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decodeBody[service.PublicProfile](t, rec)
	assert.Equal(t, env.teacher.ID, profile.TeacherID)
	assert.Len(t, profile.Slots, 1)
	assert.Len(t, profile.Products, 1)
}

func TestAPI_UtilizationReport(t *testing.T) {
	env := newTestEnv(t)
	env.createSlot(t, time.Date(2024, 9, 10, 10, 0, 0, 0, time.UTC))

	path := "/api/admin/utilization?from=2024-09-01T00:00:00Z&to=2024-10-01T00:00:00Z"

	rec := env.do(t, http.MethodGet, path, env.teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, path, env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decodeBody[[]*model.TeacherUtilization](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].TotalSlots)
	assert.Zero(t, rows[0].UtilizationRate)

	rec = env.do(t, http.MethodGet, "/api/admin/utilization?from=yesterday", env.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS_CredentialsOnlyForExplicitOrigins(t *testing.T) {
	cases := []struct {
		name        string
		origins     []string
		origin      string
		allowOrigin string
		credentials string
	}{
		{name: "wildcard", origins: []string{"*"}, origin: "https://evil.example.com", allowOrigin: "*", credentials: ""},
		{name: "explicit", origins: []string{"https://app.example.com"}, origin: "https://app.example.com",
			allowOrigin: "https://app.example.com", credentials: "true"},
		{name: "explicit, foreign origin", origins: []string{"https://app.example.com"}, origin: "https://evil.example.com",
			allowOrigin: "", credentials: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := zap.NewNop()
			router := NewRouter(NewHandler(Services{}, 50, func() time.Time { return testNow }, logger), tc.origins, logger)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.allowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tc.credentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
