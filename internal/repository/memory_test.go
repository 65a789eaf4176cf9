package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

var testTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newUser(t *testing.T, r *MemoryRepository, email string) int64 {
	t.Helper()
	id, err := r.CreateUser(context.Background(), model.NewUser{
		Name:              "User " + email,
		Phone:             "9876543210",
		Email:             email,
		BankAccountNumber: "001122334455",
		PasswordHash:      []byte("hash"),
	})
	require.NoError(t, err)
	return id
}

func approvedUserWithBalance(t *testing.T, r *MemoryRepository, email, uniqueID string, balance int64) int64 {
	t.Helper()
	ctx := context.Background()
	id := newUser(t, r, email)
	_, err := r.ApproveUser(ctx, email, uniqueID, 1, testTime)
	require.NoError(t, err)
	if balance > 0 {
		_, err = r.CreditUser(ctx, id, balance, 0)
		require.NoError(t, err)
	}
	return id
}

func TestMemoryRepository_CreateUser(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	id := newUser(t, r, "x@y.com")

	u, err := r.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusPending, u.Status)
	assert.Equal(t, model.KYCStatusNone, u.KYCStatus)
	assert.Nil(t, u.UniqueID)
	assert.Nil(t, u.ApprovedBy)
	assert.Zero(t, u.TotalBalance)

	_, err = r.CreateUser(ctx, model.NewUser{Email: "x@y.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	// Email сравнивается точно, с учётом регистра.
	_, err = r.CreateUser(ctx, model.NewUser{Email: "X@y.com"})
	assert.NoError(t, err)
}

func TestMemoryRepository_RejectedEmailBlocksRegistration(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	newUser(t, r, "gone@example.com")
	_, err := r.RejectUser(ctx, "gone@example.com", 1, "fake documents", testTime)
	require.NoError(t, err)

	_, err = r.CreateUser(ctx, model.NewUser{Email: "gone@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestMemoryRepository_ApproveUser(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	newUser(t, r, "a@example.com")
	newUser(t, r, "b@example.com")

	u, err := r.ApproveUser(ctx, "a@example.com", "octa001", 7, testTime)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusApproved, u.Status)
	require.NotNil(t, u.UniqueID)
	assert.Equal(t, "octa001", *u.UniqueID)
	assert.Equal(t, int64(7), *u.ApprovedBy)
	assert.Equal(t, testTime, *u.ApprovedAt)

	byUID, err := r.GetUserByUniqueID(ctx, "octa001")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byUID.ID)

	_, err = r.ApproveUser(ctx, "b@example.com", "octa001", 7, testTime)
	assert.ErrorIs(t, err, ErrUniqueIDTaken)

	b, err := r.GetUserByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusPending, b.Status, "failed approval must leave the user pending")

	_, err = r.ApproveUser(ctx, "a@example.com", "octa002", 7, testTime)
	assert.ErrorIs(t, err, ErrUserAlreadyResolved)

	_, err = r.RejectUser(ctx, "a@example.com", 7, "late", testTime)
	assert.ErrorIs(t, err, ErrUserAlreadyResolved)

	_, err = r.ApproveUser(ctx, "nobody@example.com", "octa003", 7, testTime)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryRepository_RejectUser(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	newUser(t, r, "a@example.com")

	u, err := r.RejectUser(ctx, "a@example.com", 3, "duplicate", testTime)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusRejected, u.Status)
	assert.Nil(t, u.UniqueID)
	assert.Equal(t, int64(3), *u.ApprovedBy)
	assert.Equal(t, "duplicate", *u.RejectionReason)

	_, err = r.ApproveUser(ctx, "a@example.com", "octa001", 3, testTime)
	assert.ErrorIs(t, err, ErrUserAlreadyResolved)
}

func TestMemoryRepository_ListUsersByStatus(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	clock := testTime
	r.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	newUser(t, r, "first@example.com")
	newUser(t, r, "second@example.com")
	newUser(t, r, "third@example.com")
	_, err := r.ApproveUser(ctx, "second@example.com", "octa002", 1, testTime)
	require.NoError(t, err)

	pending, err := r.ListUsersByStatus(ctx, model.UserStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first@example.com", pending[0].Email)
	assert.Equal(t, "third@example.com", pending[1].Email)

	approved, err := r.ListUsersByStatus(ctx, model.UserStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "second@example.com", approved[0].Email)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	id := newUser(t, r, "a@example.com")
	u, err := r.GetUserByID(ctx, id)
	require.NoError(t, err)

	u.Status = model.UserStatusApproved
	u.TotalBalance = 1_000_000
	u.PasswordHash[0] = 'X'

	again, err := r.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusPending, again.Status)
	assert.Zero(t, again.TotalBalance)
	assert.Equal(t, []byte("hash"), again.PasswordHash)
}

func TestMemoryRepository_Admins(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	id, err := r.CreateAdmin(ctx, model.Admin{Name: "Ops", Email: "ops@example.com", Role: model.RoleAgent})
	require.NoError(t, err)

	a, err := r.GetAdminByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, model.RoleAgent, a.Role)

	_, err = r.CreateAdmin(ctx, model.Admin{Email: "ops@example.com"})
	assert.ErrorIs(t, err, ErrAdminExists)

	_, err = r.GetAdminByID(ctx, 999)
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestMemoryRepository_KYC(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	c := newUser(t, r, "c@example.com")
	d := newUser(t, r, "d@example.com")

	_, err := r.CreateKYC(ctx, model.KYCRecord{UserID: c, FullName: "C", AadhaarNumber: "111122223333", PANNumber: "ABCDE1234F"})
	require.NoError(t, err)

	u, err := r.GetUserByID(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusPending, u.KYCStatus)

	_, err = r.CreateKYC(ctx, model.KYCRecord{UserID: c, FullName: "Other", AadhaarNumber: "999988887777", PANNumber: "ZZZZZ9999Z"})
	assert.ErrorIs(t, err, ErrKYCExists)

	_, err = r.CreateKYC(ctx, model.KYCRecord{UserID: d, FullName: "D", AadhaarNumber: "111122223333", PANNumber: "QWERT1234Y"})
	assert.ErrorIs(t, err, ErrKYCDocumentInUse)

	_, err = r.CreateKYC(ctx, model.KYCRecord{UserID: d, FullName: "D", AadhaarNumber: "444455556666", PANNumber: "ABCDE1234F"})
	assert.ErrorIs(t, err, ErrKYCDocumentInUse)

	_, err = r.GetKYCByUserID(ctx, d)
	assert.ErrorIs(t, err, ErrKYCNotFound)

	_, err = r.CreateKYC(ctx, model.KYCRecord{UserID: 404, AadhaarNumber: "1", PANNumber: "2"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryRepository_CreateWithdrawalChecks(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	pendingID := newUser(t, r, "pending@example.com")
	_, err := r.CreditUser(ctx, pendingID, 500, 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  int64
		amount  int64
		wantErr error
	}{
		{name: "unknown user", userID: 404, amount: 1, wantErr: ErrUserNotFound},
		{name: "balance checked before status", userID: pendingID, amount: 501, wantErr: ErrInsufficientBalance},
		{name: "not approved", userID: pendingID, amount: 100, wantErr: ErrUserNotApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateWithdrawal(ctx, tt.userID, tt.amount, testTime)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMemoryRepository_WithdrawalLifecycle(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	uid := approvedUserWithBalance(t, r, "a@example.com", "octa001", 15000)

	w, err := r.CreateWithdrawal(ctx, uid, 10000, testTime)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, w.Status)

	u, err := r.GetUserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), u.TotalBalance, "creation must not debit")

	processed, err := r.ProcessWithdrawal(ctx, w.ID, 9, testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusProcessed, processed.Status)
	assert.Equal(t, int64(9), *processed.ResolvedBy)
	assert.Nil(t, processed.RejectionReason)

	u, err = r.GetUserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), u.TotalBalance)

	_, err = r.ProcessWithdrawal(ctx, w.ID, 9, testTime)
	assert.ErrorIs(t, err, ErrWithdrawalAlreadyResolved)
	_, err = r.RejectWithdrawal(ctx, w.ID, 9, "late", testTime)
	assert.ErrorIs(t, err, ErrWithdrawalAlreadyResolved)

	_, err = r.ProcessWithdrawal(ctx, "missing", 9, testTime)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}

func TestMemoryRepository_RejectWithdrawalKeepsBalance(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	uid := approvedUserWithBalance(t, r, "a@example.com", "octa001", 3000)
	w, err := r.CreateWithdrawal(ctx, uid, 2000, testTime)
	require.NoError(t, err)

	rejected, err := r.RejectWithdrawal(ctx, w.ID, 2, "bank mismatch", testTime)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "bank mismatch", *rejected.RejectionReason)

	u, err := r.GetUserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), u.TotalBalance)
}

func TestMemoryRepository_ProcessRevalidatesBalance(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	uid := approvedUserWithBalance(t, r, "a@example.com", "octa001", 10000)

	first, err := r.CreateWithdrawal(ctx, uid, 7000, testTime)
	require.NoError(t, err)
	second, err := r.CreateWithdrawal(ctx, uid, 7000, testTime.Add(time.Second))
	require.NoError(t, err)

	_, err = r.ProcessWithdrawal(ctx, first.ID, 1, testTime)
	require.NoError(t, err)

	_, err = r.ProcessWithdrawal(ctx, second.ID, 1, testTime)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	still, err := r.GetWithdrawal(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, still.Status)

	u, err := r.GetUserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), u.TotalBalance)
}

func TestMemoryRepository_WithdrawalOrdering(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a := approvedUserWithBalance(t, r, "a@example.com", "octa001", 10000)
	b := approvedUserWithBalance(t, r, "b@example.com", "octa002", 10000)

	w1, err := r.CreateWithdrawal(ctx, a, 100, testTime)
	require.NoError(t, err)
	w2, err := r.CreateWithdrawal(ctx, b, 200, testTime.Add(time.Minute))
	require.NoError(t, err)
	w3, err := r.CreateWithdrawal(ctx, a, 300, testTime.Add(2*time.Minute))
	require.NoError(t, err)

	pending, err := r.ListPendingWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{w1.ID, w2.ID, w3.ID}, []string{pending[0].ID, pending[1].ID, pending[2].ID})

	mine, err := r.ListWithdrawalsByUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, w3.ID, mine[0].ID, "history is newest first")
	assert.Equal(t, w1.ID, mine[1].ID)
}

func TestMemoryRepository_ConcurrentProcess(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	uid := approvedUserWithBalance(t, r, "a@example.com", "octa001", 10000)
	w, err := r.CreateWithdrawal(ctx, uid, 4000, testTime)
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			_, err := r.ProcessWithdrawal(ctx, w.ID, admin, testTime)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrWithdrawalAlreadyResolved):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	u, err := r.GetUserByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), u.TotalBalance)
}

func TestMemoryRepository_ConcurrentApproveAssignsDistinctIDs(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	const users = 20
	for i := 0; i < users; i++ {
		newUser(t, r, fmt.Sprintf("u%d@example.com", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.ApproveUser(ctx, fmt.Sprintf("u%d@example.com", i), fmt.Sprintf("octa%03d", i), 1, testTime)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	approved, err := r.ListUsersByStatus(ctx, model.UserStatusApproved)
	require.NoError(t, err)
	seen := make(map[string]bool, users)
	for _, u := range approved {
		require.NotNil(t, u.UniqueID)
		assert.False(t, seen[*u.UniqueID], "duplicate unique id %s", *u.UniqueID)
		seen[*u.UniqueID] = true
	}
	assert.Len(t, seen, users)
}
