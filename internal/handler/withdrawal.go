package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Withdraw создаёт заявку на вывод средств текущего пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), p, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "Withdrawal request submitted", toWithdrawalResponse(wd))
}

// GetWithdrawals возвращает историю заявок текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ws, err := h.service.ListWithdrawalsByUser(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Withdrawals retrieved", toWithdrawalList(ws))
}

// PendingWithdrawals возвращает необработанные заявки для сотрудников.
func (h *Handler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	ws, err := h.service.ListPendingWithdrawals(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Pending withdrawals retrieved", toWithdrawalList(ws))
}

// ProcessWithdrawal проводит заявку и списывает средства.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	wd, err := h.service.ProcessWithdrawal(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Withdrawal processed successfully", toWithdrawalResponse(wd))
}

type rejectWithdrawalRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

// RejectWithdrawal отклоняет заявку с указанием причины.
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req rejectWithdrawalRequest
	if !h.decode(w, r, &req) {
		return
	}

	wd, err := h.service.RejectWithdrawal(r.Context(), p, chi.URLParam(r, "id"), req.RejectionReason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Withdrawal rejected successfully", toWithdrawalResponse(wd))
}
