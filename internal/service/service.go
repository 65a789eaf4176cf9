// Package service реализует машины состояний одобрения пользователей и вывода средств.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/notify"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, nu model.NewUser) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUniqueID(ctx context.Context, uniqueID string) (*model.User, error)
	ListUsersByStatus(ctx context.Context, status model.UserStatus) ([]model.User, error)
	ApproveUser(ctx context.Context, email, uniqueID string, adminID int64, at time.Time) (*model.User, error)
	RejectUser(ctx context.Context, email string, adminID int64, reason string, at time.Time) (*model.User, error)
	CreditUser(ctx context.Context, userID, amount, coins int64) (*model.User, error)

	CreateAdmin(ctx context.Context, a model.Admin) (int64, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*model.Admin, error)

	CreateKYC(ctx context.Context, k model.KYCRecord) (int64, error)
	GetKYCByUserID(ctx context.Context, userID int64) (*model.KYCRecord, error)

	CreateWithdrawal(ctx context.Context, userID, amount int64, at time.Time) (*model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	ProcessWithdrawal(ctx context.Context, id string, adminID int64, at time.Time) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id string, adminID int64, reason string, at time.Time) (*model.Withdrawal, error)
}

// Notifier доставляет уведомления о решении по аккаунту.
type Notifier interface {
	NotifyApproval(ctx context.Context, a notify.Approval) error
	NotifyRejection(ctx context.Context, r notify.Rejection) error
}

// DocumentStore сохраняет двоичный документ под ключом и возвращает постоянный URL.
type DocumentStore interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// Recorder принимает события для метрик.
type Recorder interface {
	UserResolved(status model.UserStatus)
	WithdrawalRequested(amount int64)
	WithdrawalResolved(status model.WithdrawalStatus, amount int64)
	OperationFailed(operation, kind string)
}

type nopRecorder struct{}

func (nopRecorder) UserResolved(model.UserStatus)                    {}
func (nopRecorder) WithdrawalRequested(int64)                        {}
func (nopRecorder) WithdrawalResolved(model.WithdrawalStatus, int64) {}
func (nopRecorder) OperationFailed(string, string)                   {}

const (
	defaultUniqueIDAttempts = 20
	notifyTimeout           = 10 * time.Second
)

// Option настраивает Service.
type Option func(*Service)

// WithNotifier задаёт доставку уведомлений.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDocumentStore задаёт хранилище документов KYC.
func WithDocumentStore(d DocumentStore) Option {
	return func(s *Service) { s.documents = d }
}

// WithRecorder задаёт приёмник метрик.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithUniqueIDGenerator подменяет генератор публичных идентификаторов.
func WithUniqueIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newUniqueID = gen }
}

// WithUniqueIDAttempts задаёт число попыток подобрать свободный публичный идентификатор.
func WithUniqueIDAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uniqueIDAttempts = n
		}
	}
}

// Service содержит бизнес-логику одобрения пользователей, KYC и вывода средств.
type Service struct {
	repo      Repository
	logger    *zap.Logger
	notifier  Notifier
	documents DocumentStore
	metrics   Recorder

	now              func() time.Time
	newUniqueID      func() string
	uniqueIDAttempts int
	resolvers        []principalResolver

	inflight sync.WaitGroup
}

// NewService создаёт сервис поверх указанного хранилища.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:             repo,
		logger:           logger,
		metrics:          nopRecorder{},
		now:              time.Now,
		newUniqueID:      RandomUniqueID,
		uniqueIDAttempts: defaultUniqueIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(logger)
	}
	s.resolvers = s.defaultResolvers()

	return s
}

// Close дожидается отправки уведомлений и закрывает хранилище.
func (s *Service) Close() error {
	s.inflight.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RandomUniqueID возвращает случайный публичный идентификатор вида octaNNN.
func RandomUniqueID() string {
	return fmt.Sprintf("octa%03d", rand.Intn(1000))
}

// fail пропускает доменные ошибки без изменений, а сбои хранилища логирует
// и заменяет на ErrInternal.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	kind := KindOf(err)
	s.metrics.OperationFailed(op, string(kind))
	if kind != KindInternal {
		return err
	}
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %s", ErrInternal, op)
}

// dispatch отправляет уведомление в фоне после фиксации перехода.
// Контекст отвязан от запроса, поэтому отмена запроса не прерывает отправку.
func (s *Service) dispatch(ctx context.Context, what string, send func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Warn("notification failed", zap.String("notification", what), zap.Error(err))
		}
	}()
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func requireStaff(p model.Principal) error {
	if !p.Role.IsStaff() {
		return fmt.Errorf("%w: admin or agent role required", ErrForbidden)
	}
	return nil
}

func requireUser(p model.Principal) error {
	if p.Role != model.RoleUser {
		return fmt.Errorf("%w: user role required", ErrForbidden)
	}
	return nil
}
