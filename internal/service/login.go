package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/repository"
)

// CredentialVerifier проверяет предъявленный пароль против сохранённого хеша.
type CredentialVerifier func(passwordHash []byte) error

// loginCandidate описывает найденную учётную запись до проверки пароля.
type loginCandidate struct {
	principal    model.Principal
	passwordHash []byte
	status       model.UserStatus
}

// principalResolver ищет учётную запись по идентификатору. Если запись не
// найдена, возвращает errNoMatch.
type principalResolver struct {
	name    string
	resolve func(ctx context.Context, identifier string) (*loginCandidate, error)
}

var errNoMatch = errors.New("no match")

// defaultResolvers задаёт порядок поиска: сотрудник по email, пользователь
// по email, пользователь по публичному идентификатору.
func (s *Service) defaultResolvers() []principalResolver {
	return []principalResolver{
		{name: "admin_by_email", resolve: s.resolveAdminByEmail},
		{name: "user_by_email", resolve: s.userResolver(s.repo.GetUserByEmail)},
		{name: "user_by_unique_id", resolve: s.userResolver(s.repo.GetUserByUniqueID)},
	}
}

func (s *Service) resolveAdminByEmail(ctx context.Context, identifier string) (*loginCandidate, error) {
	a, err := s.repo.GetAdminByEmail(ctx, identifier)
	if errors.Is(err, repository.ErrAdminNotFound) {
		return nil, errNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &loginCandidate{
		principal:    model.Principal{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role},
		passwordHash: a.PasswordHash,
	}, nil
}

func (s *Service) userResolver(lookup func(ctx context.Context, key string) (*model.User, error)) func(context.Context, string) (*loginCandidate, error) {
	return func(ctx context.Context, identifier string) (*loginCandidate, error) {
		u, err := lookup(ctx, identifier)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errNoMatch
		}
		if err != nil {
			return nil, err
		}
		return &loginCandidate{
			principal:    model.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: model.RoleUser},
			passwordHash: u.PasswordHash,
			status:       u.Status,
		}, nil
	}
}

// Login определяет субъекта по email или публичному идентификатору.
// Первое совпадение фиксирует тип субъекта. Пользователь, не прошедший
// одобрение, войти не может.
func (s *Service) Login(ctx context.Context, identifier string, verify CredentialVerifier) (*model.Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || verify == nil {
		return nil, invalid("identifier and password are required")
	}

	var found *loginCandidate
	for _, r := range s.resolvers {
		c, err := r.resolve(ctx, identifier)
		if errors.Is(err, errNoMatch) {
			continue
		}
		if err != nil {
			return nil, s.fail("login", err, zap.String("resolver", r.name))
		}
		found = c
		break
	}

	if found == nil {
		return nil, fmt.Errorf("%w: invalid email/unique id or password", ErrUnauthorized)
	}
	if err := verify(found.passwordHash); err != nil {
		return nil, fmt.Errorf("%w: invalid email/unique id or password", ErrUnauthorized)
	}
	if found.principal.Role == model.RoleUser && found.status != model.UserStatusApproved {
		return nil, fmt.Errorf("%w: account is not approved yet", ErrUnauthorized)
	}

	s.logger.Info("login succeeded", zap.Int64("id", found.principal.ID), zap.String("role", string(found.principal.Role)))
	p := found.principal
	return &p, nil
}
