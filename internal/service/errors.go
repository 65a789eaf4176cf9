package service

import (
	"errors"

	"github.com/mmeshcher/octa-payouts/internal/repository"
)

var (
	// ErrInvalidInput возвращается при некорректных или отсутствующих входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized возвращается, если субъект не опознан или не может войти.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden возвращается, если роль субъекта не допускает операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrInternal скрывает от вызывающего детали сбоя хранилища.
	ErrInternal = errors.New("internal error")
	// ErrUniqueIDExhausted возвращается, если не удалось подобрать свободный публичный идентификатор.
	ErrUniqueIDExhausted = errors.New("unique id space exhausted")
)

// Kind классифицирует ошибку сервиса для внешнего API.
type Kind string

const (
	KindBadRequest          Kind = "BadRequest"
	KindUnauthorized        Kind = "Unauthorized"
	KindForbidden           Kind = "Forbidden"
	KindNotFound            Kind = "NotFound"
	KindConflict            Kind = "Conflict"
	KindInsufficientBalance Kind = "InsufficientBalance"
	KindInternal            Kind = "Internal"
)

// KindOf сводит ошибку к одной из категорий API. Неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindBadRequest
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden),
		errors.Is(err, repository.ErrUserNotApproved):
		return KindForbidden
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAdminNotFound),
		errors.Is(err, repository.ErrKYCNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrUserAlreadyResolved),
		errors.Is(err, repository.ErrAdminExists),
		errors.Is(err, repository.ErrKYCExists),
		errors.Is(err, repository.ErrKYCDocumentInUse),
		errors.Is(err, repository.ErrWithdrawalAlreadyResolved):
		return KindConflict
	case errors.Is(err, repository.ErrInsufficientBalance):
		return KindInsufficientBalance
	default:
		return KindInternal
	}
}
