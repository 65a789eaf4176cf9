// Package handler содержит HTTP-обработчики API сервиса выплат.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/octa-payouts/internal/middleware"
	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, reg service.Registration) (int64, error)
	Login(ctx context.Context, identifier string, verify service.CredentialVerifier) (*model.Principal, error)
	GetProfile(ctx context.Context, p model.Principal) (*model.Profile, error)

	ListPendingUsers(ctx context.Context, p model.Principal) ([]model.User, error)
	ListApprovedUsers(ctx context.Context, p model.Principal) ([]model.User, error)
	ApproveUser(ctx context.Context, p model.Principal, email string) (*service.ApprovalResult, error)
	RejectUser(ctx context.Context, p model.Principal, email, reason string) (*service.RejectionResult, error)
	CreditUser(ctx context.Context, p model.Principal, userID, amount, coins int64) (*model.User, error)

	SubmitKYC(ctx context.Context, p model.Principal, sub service.KYCSubmission) (*model.KYCRecord, error)
	GetKYC(ctx context.Context, p model.Principal) (*model.KYCRecord, error)

	GetBalance(ctx context.Context, p model.Principal) (*model.Balance, error)
	RequestWithdrawal(ctx context.Context, p model.Principal, amount int64) (*model.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, p model.Principal) ([]model.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, p model.Principal) ([]model.Withdrawal, error)
	ProcessWithdrawal(ctx context.Context, p model.Principal, id string) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, p model.Principal, id, reason string) (*model.Withdrawal, error)
}

// Option настраивает Handler.
type Option func(*Handler)

// WithMetrics публикует обработчик метрик на /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithDocuments раздаёт сохранённые документы под указанным префиксом только
// аутентифицированным владельцам и персоналу. Абсолютные URL (внешний CDN) не монтируются.
func WithDocuments(prefix string, files http.Handler) Option {
	return func(h *Handler) {
		if !strings.HasPrefix(prefix, "/") {
			return
		}
		h.documentsPrefix = strings.TrimRight(prefix, "/")
		h.documents = files
	}
}

// WithAllowedOrigins включает CORS для указанных источников.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.allowedOrigins = origins }
}

// Handler реализует HTTP-обработчики API сервиса выплат.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	passwordCost   int

	metrics         http.Handler
	documentsPrefix string
	documents       http.Handler
	allowedOrigins  []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		passwordCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type registerRequest struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	BankAccountNumber string `json:"bank_account_number"`
	Password          string `json:"password"`
}

// Register регистрирует пользователя в статусе pending.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		h.writeError(w, invalidRequest("all fields are required"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.passwordCost)
	if err != nil {
		h.logger.Error("hash password error", zap.Error(err))
		h.writeError(w, service.ErrInternal)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), service.Registration{
		Name:              req.Name,
		Phone:             req.Phone,
		Email:             req.Email,
		BankAccountNumber: req.BankAccountNumber,
		PasswordHash:      hash,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, "Registration successful. Waiting for admin approval.", map[string]int64{"userId": userID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string     `json:"token"`
	UserID   int64      `json:"userId"`
	Email    string     `json:"email"`
	UserType model.Role `json:"userType"`
	Name     string     `json:"name"`
}

// Login принимает email или публичный идентификатор и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		h.writeError(w, invalidRequest("email and password are required"))
		return
	}

	p, err := h.service.Login(r.Context(), req.Email, func(hash []byte) error {
		return bcrypt.CompareHashAndPassword(hash, []byte(req.Password))
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(*p)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err), zap.Int64("id", p.ID))
		h.writeError(w, service.ErrInternal)
		return
	}
	h.authMiddleware.SetAuthCookie(w, token)

	writeOK(w, http.StatusOK, "Login successful", loginResponse{
		Token:    token,
		UserID:   p.ID,
		Email:    p.Email,
		UserType: p.Role,
		Name:     p.Name,
	})
}

// Profile возвращает профиль текущего субъекта.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if profile.Admin != nil {
		writeOK(w, http.StatusOK, "Profile retrieved successfully", toAdminResponse(profile.Admin))
		return
	}
	resp := toUserResponse(profile.User)
	resp.ApprovedByName = profile.ApprovedByName
	writeOK(w, http.StatusOK, "Profile retrieved successfully", resp)
}

// Balance возвращает баланс текущего пользователя.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetBalance(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeOK(w, http.StatusOK, "Balance retrieved successfully", balanceResponse{
		TotalBalance: formatAmount(b.TotalBalance),
		TotalCoins:   b.TotalCoins,
	})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, service.ErrUnauthorized)
		return model.Principal{}, false
	}
	return p, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, invalidRequest("malformed JSON body"))
		return false
	}
	return true
}
