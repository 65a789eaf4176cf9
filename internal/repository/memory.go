package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Все изменения
// сериализуются одним мьютексом, наружу отдаются только копии записей.
type MemoryRepository struct {
	mu sync.Mutex

	now func() time.Time

	users       map[int64]*model.User
	emailIndex  map[string]int64
	uniqueIndex map[string]int64
	nextUserID  int64

	admins      map[int64]*model.Admin
	adminEmails map[string]int64
	nextAdminID int64

	kyc        map[int64]*model.KYCRecord
	aadhaarSet map[string]struct{}
	panSet     map[string]struct{}
	nextKYCID  int64

	withdrawals map[string]*model.Withdrawal
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:         time.Now,
		users:       make(map[int64]*model.User),
		emailIndex:  make(map[string]int64),
		uniqueIndex: make(map[string]int64),
		admins:      make(map[int64]*model.Admin),
		adminEmails: make(map[string]int64),
		kyc:         make(map[int64]*model.KYCRecord),
		aadhaarSet:  make(map[string]struct{}),
		panSet:      make(map[string]struct{}),
		withdrawals: make(map[string]*model.Withdrawal),
	}
}

// Close ничего не освобождает и нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error {
	return nil
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

func copyWithdrawal(w *model.Withdrawal) *model.Withdrawal {
	c := *w
	return &c
}

func (r *MemoryRepository) CreateUser(ctx context.Context, nu model.NewUser) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emailIndex[nu.Email]; exists {
		return 0, fmt.Errorf("%w: %s", ErrUserExists, nu.Email)
	}

	r.nextUserID++
	u := &model.User{
		ID:                r.nextUserID,
		Name:              nu.Name,
		Phone:             nu.Phone,
		Email:             nu.Email,
		BankAccountNumber: nu.BankAccountNumber,
		PasswordHash:      append([]byte(nil), nu.PasswordHash...),
		Status:            model.UserStatusPending,
		KYCStatus:         model.KYCStatusNone,
		CreatedAt:         r.now(),
	}
	r.users[u.ID] = u
	r.emailIndex[u.Email] = u.ID

	return u.ID, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.emailIndex[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	return copyUser(r.users[id]), nil
}

func (r *MemoryRepository) GetUserByUniqueID(ctx context.Context, uniqueID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.uniqueIndex[uniqueID]
	if !exists {
		return nil, ErrUserNotFound
	}
	return copyUser(r.users[id]), nil
}

func (r *MemoryRepository) ListUsersByStatus(ctx context.Context, status model.UserStatus) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.User
	for _, u := range r.users {
		if u.Status == status {
			res = append(res, *copyUser(u))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// pendingUserByEmail ищет пользователя в статусе pending. Вызывается под мьютексом.
func (r *MemoryRepository) pendingUserByEmail(email string) (*model.User, error) {
	id, exists := r.emailIndex[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := r.users[id]
	if u.Status != model.UserStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrUserAlreadyResolved, u.Status)
	}
	return u, nil
}

func (r *MemoryRepository) ApproveUser(ctx context.Context, email, uniqueID string, adminID int64, at time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.pendingUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if _, taken := r.uniqueIndex[uniqueID]; taken {
		return nil, fmt.Errorf("%w: %s", ErrUniqueIDTaken, uniqueID)
	}

	uid := uniqueID
	by := adminID
	approvedAt := at
	u.Status = model.UserStatusApproved
	u.UniqueID = &uid
	u.ApprovedBy = &by
	u.ApprovedAt = &approvedAt
	r.uniqueIndex[uid] = u.ID

	return copyUser(u), nil
}

func (r *MemoryRepository) RejectUser(ctx context.Context, email string, adminID int64, reason string, at time.Time) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.pendingUserByEmail(email)
	if err != nil {
		return nil, err
	}

	by := adminID
	rejectedAt := at
	why := reason
	u.Status = model.UserStatusRejected
	u.ApprovedBy = &by
	u.ApprovedAt = &rejectedAt
	u.RejectionReason = &why

	return copyUser(u), nil
}

func (r *MemoryRepository) CreditUser(ctx context.Context, userID, amount, coins int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	u.TotalBalance += amount
	u.TotalCoins += coins
	return copyUser(u), nil
}

func (r *MemoryRepository) CreateAdmin(ctx context.Context, a model.Admin) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adminEmails[a.Email]; exists {
		return 0, fmt.Errorf("%w: %s", ErrAdminExists, a.Email)
	}

	r.nextAdminID++
	a.ID = r.nextAdminID
	a.CreatedAt = r.now()
	r.admins[a.ID] = &a
	r.adminEmails[a.Email] = a.ID
	return a.ID, nil
}

func (r *MemoryRepository) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.adminEmails[email]
	if !exists {
		return nil, ErrAdminNotFound
	}
	a := *r.admins[id]
	return &a, nil
}

func (r *MemoryRepository) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.admins[id]
	if !exists {
		return nil, ErrAdminNotFound
	}
	c := *a
	return &c, nil
}

func (r *MemoryRepository) CreateKYC(ctx context.Context, k model.KYCRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[k.UserID]
	if !exists {
		return 0, ErrUserNotFound
	}
	if _, exists := r.kyc[k.UserID]; exists {
		return 0, ErrKYCExists
	}
	if _, taken := r.aadhaarSet[k.AadhaarNumber]; taken {
		return 0, ErrKYCDocumentInUse
	}
	if _, taken := r.panSet[k.PANNumber]; taken {
		return 0, ErrKYCDocumentInUse
	}

	r.nextKYCID++
	k.ID = r.nextKYCID
	k.CreatedAt = r.now()
	r.kyc[k.UserID] = &k
	r.aadhaarSet[k.AadhaarNumber] = struct{}{}
	r.panSet[k.PANNumber] = struct{}{}
	u.KYCStatus = model.KYCStatusPending

	return k.ID, nil
}

func (r *MemoryRepository) GetKYCByUserID(ctx context.Context, userID int64) (*model.KYCRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, exists := r.kyc[userID]
	if !exists {
		return nil, ErrKYCNotFound
	}
	c := *k
	return &c, nil
}

func (r *MemoryRepository) CreateWithdrawal(ctx context.Context, userID, amount int64, at time.Time) (*model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	if amount > u.TotalBalance {
		return nil, ErrInsufficientBalance
	}
	if u.Status != model.UserStatusApproved {
		return nil, ErrUserNotApproved
	}

	w := &model.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Status:      model.WithdrawalStatusPending,
		RequestedAt: at,
	}
	r.withdrawals[w.ID] = w
	return copyWithdrawal(w), nil
}

func (r *MemoryRepository) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.withdrawals[id]
	if !exists {
		return nil, ErrWithdrawalNotFound
	}
	return copyWithdrawal(w), nil
}

func (r *MemoryRepository) filterWithdrawals(keep func(*model.Withdrawal) bool, newestFirst bool) []model.Withdrawal {
	var res []model.Withdrawal
	for _, w := range r.withdrawals {
		if keep(w) {
			res = append(res, *w)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].RequestedAt.Equal(res[j].RequestedAt) {
			return res[i].ID < res[j].ID
		}
		if newestFirst {
			return res[i].RequestedAt.After(res[j].RequestedAt)
		}
		return res[i].RequestedAt.Before(res[j].RequestedAt)
	})
	return res
}

func (r *MemoryRepository) ListPendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterWithdrawals(func(w *model.Withdrawal) bool {
		return w.Status == model.WithdrawalStatusPending
	}, false), nil
}

func (r *MemoryRepository) ListWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterWithdrawals(func(w *model.Withdrawal) bool {
		return w.UserID == userID
	}, true), nil
}

// pendingWithdrawal ищет необработанную заявку. Вызывается под мьютексом.
func (r *MemoryRepository) pendingWithdrawal(id string) (*model.Withdrawal, error) {
	w, exists := r.withdrawals[id]
	if !exists {
		return nil, ErrWithdrawalNotFound
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrWithdrawalAlreadyResolved, w.Status)
	}
	return w, nil
}

func (r *MemoryRepository) ProcessWithdrawal(ctx context.Context, id string, adminID int64, at time.Time) (*model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.pendingWithdrawal(id)
	if err != nil {
		return nil, err
	}
	u, exists := r.users[w.UserID]
	if !exists {
		return nil, ErrUserNotFound
	}
	if w.Amount > u.TotalBalance {
		return nil, ErrInsufficientBalance
	}

	by := adminID
	resolvedAt := at
	u.TotalBalance -= w.Amount
	w.Status = model.WithdrawalStatusProcessed
	w.ResolvedBy = &by
	w.ResolvedAt = &resolvedAt

	return copyWithdrawal(w), nil
}

func (r *MemoryRepository) RejectWithdrawal(ctx context.Context, id string, adminID int64, reason string, at time.Time) (*model.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.pendingWithdrawal(id)
	if err != nil {
		return nil, err
	}

	by := adminID
	resolvedAt := at
	why := reason
	w.Status = model.WithdrawalStatusRejected
	w.ResolvedBy = &by
	w.ResolvedAt = &resolvedAt
	w.RejectionReason = &why

	return copyWithdrawal(w), nil
}
