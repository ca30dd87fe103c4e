package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
)

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	product, err := h.svc.Ledger.CreateProduct(r.Context(), actorFrom(r.Context()), req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req ProductRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	product, err := h.svc.Ledger.UpdateProduct(r.Context(), actorFrom(r.Context()), id, req.input())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	teacherID, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	products, err := h.svc.Ledger.ListActiveProducts(r.Context(), teacherID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	summary, err := h.svc.Ledger.Balances(r.Context(), actorFrom(r.Context()), studentID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PaymentWebhook зачисление по событию оплаты. Повтор paymentId отвечает 200 с duplicate=true.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if req.AmountPaid.IsNegative() {
		h.writeServiceError(w, r, apperr.Validation("amountPaid cannot be negative"))
		return
	}

	balance, created, err := h.svc.Ledger.Credit(r.Context(), req.event())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if !created {
		h.logger.Info("Duplicate payment webhook", zap.String("payment_id", req.PaymentID))
		writeJSON(w, http.StatusOK, PaymentResponse{Balance: balance, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{Balance: balance})
}
