package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError переводит вид ошибки сервиса в HTTP-статус
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *apperr.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusPaymentRequired, InsufficientBalanceResponse{
			Error:     apperr.ErrInsufficientBalance.Error(),
			Requested: insufficient.Requested,
			Available: insufficient.Available,
		})
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case apperr.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, err.Error(), nil)
	case apperr.KindUpstream:
		writeError(w, http.StatusBadGateway, "upstream failure", err)
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// decode читает JSON-тело и прогоняет его через validator
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			return apperr.Validation("invalid fields: %s", strings.Join(fields, ", "))
		}
		return apperr.Validation("invalid request: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return id, nil
}

// queryTime разбирает RFC 3339; отсутствующий параметр даёт нулевое время
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid %s: expected RFC 3339 time", name)
	}
	return t, nil
}

func queryPeriod(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryTime(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryTime(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func queryLimit(r *http.Request, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return max, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("invalid limit %q", raw)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
