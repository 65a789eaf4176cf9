package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/octa-payouts/internal/notify"
)

// PendingUsers возвращает пользователей, ожидающих одобрения.
func (h *Handler) PendingUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListPendingUsers(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Pending users retrieved", toUserList(users))
}

// ApprovedUsers возвращает одобренных пользователей.
func (h *Handler) ApprovedUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListApprovedUsers(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Approved users retrieved successfully", toUserList(users))
}

type resolveUserRequest struct {
	Email           string `json:"email"`
	RejectionReason string `json:"rejection_reason"`
}

type messageResponse struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func toMessageResponse(m notify.Message) messageResponse {
	return messageResponse{To: m.To, Subject: m.Subject, Body: m.Body}
}

type approveResponse struct {
	UniqueID      string          `json:"uniqueId"`
	Email         string          `json:"email"`
	UserName      string          `json:"user_name"`
	EmailTemplate messageResponse `json:"email_template"`
}

// ApproveUser одобряет пользователя по email.
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req resolveUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.ApproveUser(r.Context(), p, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOK(w, http.StatusOK, "User approved successfully", approveResponse{
		UniqueID:      res.UniqueID,
		Email:         res.User.Email,
		UserName:      res.User.Name,
		EmailTemplate: toMessageResponse(res.Message),
	})
}

type rejectResponse struct {
	Email           string          `json:"email"`
	UserName        string          `json:"user_name"`
	RejectionReason string          `json:"rejection_reason"`
	EmailTemplate   messageResponse `json:"email_template"`
	Action          string          `json:"action"`
}

// RejectUser отклоняет пользователя по email с указанием причины.
func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req resolveUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.RejectUser(r.Context(), p, req.Email, req.RejectionReason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOK(w, http.StatusOK, "User rejected successfully", rejectResponse{
		Email:           res.User.Email,
		UserName:        res.User.Name,
		RejectionReason: res.Reason,
		EmailTemplate:   toMessageResponse(res.Message),
		Action:          "rejected",
	})
}

type creditRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Coins  int64           `json:"coins"`
}

// CreditUser начисляет пользователю средства и монеты.
func (h *Handler) CreditUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, invalidRequest("invalid user id"))
		return
	}

	var req creditRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	u, err := h.service.CreditUser(r.Context(), p, userID, amount, req.Coins)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Balance credited successfully", toUserResponse(u))
}
