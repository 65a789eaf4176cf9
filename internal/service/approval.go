package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/notify"
	"github.com/mmeshcher/octa-payouts/internal/repository"
	"github.com/mmeshcher/octa-payouts/internal/validation"
)

// Registration содержит данные, необходимые для регистрации пользователя.
type Registration struct {
	Name              string
	Phone             string
	Email             string
	BankAccountNumber string
	PasswordHash      []byte
}

// ApprovalResult возвращается после одобрения пользователя.
type ApprovalResult struct {
	User     *model.User
	UniqueID string
	Message  notify.Message
}

// RejectionResult возвращается после отказа пользователю.
type RejectionResult struct {
	User    *model.User
	Reason  string
	Message notify.Message
}

// RegisterUser создаёт аккаунт в статусе pending. Email, уже встречавшийся
// в системе, отклоняется независимо от статуса прежнего аккаунта.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (int64, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.BankAccountNumber = strings.TrimSpace(reg.BankAccountNumber)

	if reg.Name == "" || reg.Phone == "" || reg.Email == "" || reg.BankAccountNumber == "" || len(reg.PasswordHash) == 0 {
		return 0, invalid("all fields are required")
	}
	if !validation.IsValidEmail(reg.Email) {
		return 0, invalid("invalid email")
	}
	if !validation.IsValidPhone(reg.Phone) {
		return 0, invalid("invalid phone number")
	}

	id, err := s.repo.CreateUser(ctx, model.NewUser{
		Name:              reg.Name,
		Phone:             reg.Phone,
		Email:             reg.Email,
		BankAccountNumber: reg.BankAccountNumber,
		PasswordHash:      reg.PasswordHash,
	})
	if err != nil {
		return 0, s.fail("register user", err, zap.String("email", reg.Email))
	}

	s.logger.Info("user registered", zap.Int64("userID", id))
	return id, nil
}

// ListPendingUsers возвращает пользователей, ожидающих решения, старые первыми.
func (s *Service) ListPendingUsers(ctx context.Context, p model.Principal) ([]model.User, error) {
	return s.listUsers(ctx, p, model.UserStatusPending)
}

// ListApprovedUsers возвращает одобренных пользователей.
func (s *Service) ListApprovedUsers(ctx context.Context, p model.Principal) ([]model.User, error) {
	return s.listUsers(ctx, p, model.UserStatusApproved)
}

func (s *Service) listUsers(ctx context.Context, p model.Principal, status model.UserStatus) ([]model.User, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsersByStatus(ctx, status)
	if err != nil {
		return nil, s.fail("list users", err, zap.String("status", string(status)))
	}
	return users, nil
}

// ApproveUser одобряет пользователя в статусе pending и назначает ему публичный
// идентификатор. При коллизии идентификатора генерирует новый, пока не
// исчерпает число попыток.
func (s *Service) ApproveUser(ctx context.Context, p model.Principal, email string) (*ApprovalResult, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email is required")
	}

	for attempt := 1; attempt <= s.uniqueIDAttempts; attempt++ {
		uniqueID := s.newUniqueID()

		u, err := s.repo.ApproveUser(ctx, email, uniqueID, p.ID, s.now())
		if errors.Is(err, repository.ErrUniqueIDTaken) {
			s.logger.Debug("unique id collision", zap.String("uniqueID", uniqueID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, s.fail("approve user", err, zap.String("email", email), zap.Int64("adminID", p.ID))
		}

		s.metrics.UserResolved(model.UserStatusApproved)
		s.logger.Info("user approved",
			zap.Int64("userID", u.ID), zap.String("uniqueID", uniqueID), zap.Int64("adminID", p.ID))

		notice := notify.Approval{RecipientName: u.Name, Email: u.Email, UniqueID: uniqueID}
		msg, err := notify.RenderApproval(notice)
		if err != nil {
			s.logger.Warn("render approval message", zap.Error(err))
		}
		s.dispatch(ctx, "approval", func(ctx context.Context) error {
			return s.notifier.NotifyApproval(ctx, notice)
		})

		return &ApprovalResult{User: u, UniqueID: uniqueID, Message: msg}, nil
	}

	return nil, s.fail("approve user", ErrUniqueIDExhausted,
		zap.String("email", email), zap.Int("attempts", s.uniqueIDAttempts))
}

// RejectUser отклоняет пользователя в статусе pending.
func (s *Service) RejectUser(ctx context.Context, p model.Principal, email, reason string) (*RejectionResult, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("rejection reason is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email is required")
	}

	u, err := s.repo.RejectUser(ctx, email, p.ID, reason, s.now())
	if err != nil {
		return nil, s.fail("reject user", err, zap.String("email", email), zap.Int64("adminID", p.ID))
	}

	s.metrics.UserResolved(model.UserStatusRejected)
	s.logger.Info("user rejected", zap.Int64("userID", u.ID), zap.Int64("adminID", p.ID))

	notice := notify.Rejection{RecipientName: u.Name, Email: u.Email, Reason: reason}
	msg, err := notify.RenderRejection(notice)
	if err != nil {
		s.logger.Warn("render rejection message", zap.Error(err))
	}
	s.dispatch(ctx, "rejection", func(ctx context.Context) error {
		return s.notifier.NotifyRejection(ctx, notice)
	})

	return &RejectionResult{User: u, Reason: reason, Message: msg}, nil
}

// CreditUser начисляет пользователю средства и монеты. Это единственный путь
// увеличения баланса.
func (s *Service) CreditUser(ctx context.Context, p model.Principal, userID, amount, coins int64) (*model.User, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	if amount < 0 || coins < 0 || (amount == 0 && coins == 0) {
		return nil, invalid("credit must be positive")
	}

	u, err := s.repo.CreditUser(ctx, userID, amount, coins)
	if err != nil {
		return nil, s.fail("credit user", err, zap.Int64("userID", userID), zap.Int64("adminID", p.ID))
	}

	s.logger.Info("user credited",
		zap.Int64("userID", userID), zap.Int64("amount", amount), zap.Int64("coins", coins), zap.Int64("adminID", p.ID))
	return u, nil
}

// GetProfile возвращает профиль текущего субъекта. Для пользователя
// дополнительно подставляется имя одобрившего сотрудника.
func (s *Service) GetProfile(ctx context.Context, p model.Principal) (*model.Profile, error) {
	if p.Role.IsStaff() {
		a, err := s.repo.GetAdminByID(ctx, p.ID)
		if err != nil {
			return nil, s.fail("get profile", err, zap.Int64("adminID", p.ID))
		}
		return &model.Profile{Admin: a}, nil
	}

	u, err := s.repo.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, s.fail("get profile", err, zap.Int64("userID", p.ID))
	}

	profile := &model.Profile{User: u}
	if u.ApprovedBy != nil {
		profile.ApprovedByName = "Admin"
		a, err := s.repo.GetAdminByID(ctx, *u.ApprovedBy)
		switch {
		case err == nil:
			profile.ApprovedByName = a.Name
		case !errors.Is(err, repository.ErrAdminNotFound):
			s.logger.Warn("lookup approving admin", zap.Int64("adminID", *u.ApprovedBy), zap.Error(err))
		}
	}
	return profile, nil
}

// EnsureAdmin создаёт сотрудника, если сотрудника с таким email ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, a model.Admin) error {
	if a.Email == "" || len(a.PasswordHash) == 0 {
		return invalid("admin email and password are required")
	}
	if !a.Role.IsStaff() {
		a.Role = model.RoleAdmin
	}

	_, err := s.repo.GetAdminByEmail(ctx, a.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrAdminNotFound) {
		return s.fail("ensure admin", err, zap.String("email", a.Email))
	}

	id, err := s.repo.CreateAdmin(ctx, a)
	if err != nil {
		if errors.Is(err, repository.ErrAdminExists) {
			return nil
		}
		return s.fail("ensure admin", err, zap.String("email", a.Email))
	}

	s.logger.Info("admin created", zap.Int64("adminID", id), zap.String("role", string(a.Role)))
	return nil
}
