package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/service"
)

type envelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{OK: true, Message: message, Data: data})
}

// writeError переводит ошибку сервиса в HTTP-ответ. Детали внутренних сбоев
// наружу не отдаются.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	message := err.Error()
	if kind == service.KindInternal {
		if !errors.Is(err, service.ErrInternal) {
			h.logger.Error("unexpected handler error", zap.Error(err))
		}
		message = "internal server error"
	}
	writeJSON(w, statusFor(kind), envelope{Error: string(kind), Message: message})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindBadRequest:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindInsufficientBalance:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", service.ErrInvalidInput, msg)
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// parseAmount переводит сумму в рупиях в пайсы. Допускается не больше двух
// знаков после запятой.
func parseAmount(d decimal.Decimal) (int64, error) {
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, invalidRequest("amount must have at most two decimal places")
	}
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return 0, invalidRequest("amount is too large")
	}
	return minor.IntPart(), nil
}

func formatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

type balanceResponse struct {
	TotalBalance string `json:"total_balance"`
	TotalCoins   int64  `json:"total_coins"`
}

type userResponse struct {
	ID                int64            `json:"id"`
	UniqueID          *string          `json:"unique_id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Phone             string           `json:"phone"`
	BankAccountNumber string           `json:"bank_account_number"`
	Status            model.UserStatus `json:"status"`
	KYCStatus         model.KYCStatus  `json:"kyc_status"`
	TotalBalance      string           `json:"total_balance"`
	TotalCoins        int64            `json:"total_coins"`
	ApprovedBy        *int64           `json:"approved_by,omitempty"`
	ApprovedByName    string           `json:"approved_by_name,omitempty"`
	ApprovedAt        *string          `json:"approved_at,omitempty"`
	RejectionReason   *string          `json:"rejection_reason,omitempty"`
	CreatedAt         string           `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                u.ID,
		UniqueID:          u.UniqueID,
		Name:              u.Name,
		Email:             u.Email,
		Phone:             u.Phone,
		BankAccountNumber: u.BankAccountNumber,
		Status:            u.Status,
		KYCStatus:         u.KYCStatus,
		TotalBalance:      formatAmount(u.TotalBalance),
		TotalCoins:        u.TotalCoins,
		ApprovedBy:        u.ApprovedBy,
		ApprovedAt:        formatTimePtr(u.ApprovedAt),
		RejectionReason:   u.RejectionReason,
		CreatedAt:         formatTime(u.CreatedAt),
	}
}

func toUserList(users []model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp
}

type adminResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	Permissions []string   `json:"permissions"`
	CreatedAt   string     `json:"created_at"`
}

func toAdminResponse(a *model.Admin) adminResponse {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	return adminResponse{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		Permissions: perms,
		CreatedAt:   formatTime(a.CreatedAt),
	}
}

type withdrawalResponse struct {
	ID              string                 `json:"id"`
	UserID          int64                  `json:"user_id"`
	Amount          string                 `json:"amount"`
	Status          model.WithdrawalStatus `json:"status"`
	RequestedAt     string                 `json:"requested_at"`
	ResolvedBy      *int64                 `json:"resolved_by,omitempty"`
	ResolvedAt      *string                `json:"resolved_at,omitempty"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
}

func toWithdrawalResponse(w *model.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		Amount:          formatAmount(w.Amount),
		Status:          w.Status,
		RequestedAt:     formatTime(w.RequestedAt),
		ResolvedBy:      w.ResolvedBy,
		ResolvedAt:      formatTimePtr(w.ResolvedAt),
		RejectionReason: w.RejectionReason,
	}
}

func toWithdrawalList(ws []model.Withdrawal) []withdrawalResponse {
	resp := make([]withdrawalResponse, 0, len(ws))
	for i := range ws {
		resp = append(resp, toWithdrawalResponse(&ws[i]))
	}
	return resp
}

type kycResponse struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"user_id"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	AadhaarNumber string  `json:"aadhaar_no"`
	PANNumber     string  `json:"pan_number"`
	AccountNumber string  `json:"account_no"`
	Bank          string  `json:"bank"`
	IFSC          string  `json:"ifsc"`
	AadhaarImage  *string `json:"aadhaar_image"`
	PANImage      *string `json:"pancard_image"`
	CreatedAt     string  `json:"created_at"`
}

func toKYCResponse(k *model.KYCRecord) kycResponse {
	return kycResponse{
		ID:            k.ID,
		UserID:        k.UserID,
		FullName:      k.FullName,
		Email:         k.Email,
		Address:       k.Address,
		City:          k.City,
		State:         k.State,
		AadhaarNumber: k.AadhaarNumber,
		PANNumber:     k.PANNumber,
		AccountNumber: k.AccountNumber,
		Bank:          k.Bank,
		IFSC:          k.IFSC,
		AadhaarImage:  k.AadhaarImageURL,
		PANImage:      k.PANImageURL,
		CreatedAt:     formatTime(k.CreatedAt),
	}
}
