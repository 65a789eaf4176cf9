package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	constraintUserEmail    = "users_email_uniq"
	constraintUserUniqueID = "users_unique_id_uniq"
	constraintAdminEmail   = "admins_email_uniq"
	constraintKYCUser      = "kyc_records_user_uniq"
)

const userColumns = `id, unique_id, name, phone, email, bank_account_number, password_hash,
	status, kyc_status, approved_by, approved_at, rejection_reason, total_balance, total_coins, created_at`

const adminColumns = `id, name, email, password_hash, role, permissions, created_at`

const kycColumns = `id, user_id, full_name, COALESCE(email, ''), COALESCE(address, ''), COALESCE(city, ''),
	COALESCE(state, ''), aadhaar_no, pan_number, COALESCE(account_no, ''), COALESCE(bank, ''), COALESCE(ifsc, ''),
	aadhaar_image, pancard_image, created_at`

const withdrawalColumns = `id, user_id, amount, status, requested_at, resolved_by, resolved_at, rejection_reason`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при конфликте сериализации, дедлоке или обрыве соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// inTx выполняет fn в транзакции и фиксирует её только при успехе fn.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u         model.User
		status    string
		kycStatus string
	)
	err := row.Scan(&u.ID, &u.UniqueID, &u.Name, &u.Phone, &u.Email, &u.BankAccountNumber, &u.PasswordHash,
		&status, &kycStatus, &u.ApprovedBy, &u.ApprovedAt, &u.RejectionReason, &u.TotalBalance, &u.TotalCoins, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Status = model.UserStatus(status)
	u.KYCStatus = model.KYCStatus(kycStatus)
	return &u, nil
}

func (r *PostgresRepository) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateUser создаёт пользователя в статусе pending с нулевым балансом.
func (r *PostgresRepository) CreateUser(ctx context.Context, nu model.NewUser) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, phone, email, bank_account_number, password_hash, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		nu.Name, nu.Phone, nu.Email, nu.BankAccountNumber, nu.PasswordHash, string(model.UserStatusPending),
	).Scan(&id)
	if err != nil {
		if c, ok := uniqueViolation(err); ok && c == constraintUserEmail {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, nu.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getUser(ctx, `id = $1`, id)
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `email = $1`, email)
}

// GetUserByUniqueID возвращает пользователя по публичному идентификатору.
func (r *PostgresRepository) GetUserByUniqueID(ctx context.Context, uniqueID string) (*model.User, error) {
	return r.getUser(ctx, `unique_id = $1`, uniqueID)
}

// ListUsersByStatus возвращает пользователей с указанным статусом, старые первыми.
func (r *PostgresRepository) ListUsersByStatus(ctx context.Context, status model.UserStatus) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY created_at, id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveUser переводит пользователя из pending в approved и назначает публичный идентификатор.
// Переход выполняется одним условным UPDATE, поэтому из двух конкурентных вызовов успешен только один.
func (r *PostgresRepository) ApproveUser(ctx context.Context, email, uniqueID string, adminID int64, at time.Time) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET status = $2, unique_id = $3, approved_by = $4, approved_at = $5
		 WHERE email = $1 AND status = $6
		 RETURNING `+userColumns,
		email, string(model.UserStatusApproved), uniqueID, adminID, at, string(model.UserStatusPending),
	))
	if err == nil {
		return u, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainUserMiss(ctx, email)
	}
	if c, ok := uniqueViolation(err); ok && c == constraintUserUniqueID {
		return nil, fmt.Errorf("%w: %s", ErrUniqueIDTaken, uniqueID)
	}
	return nil, fmt.Errorf("approve user: %w", err)
}

// RejectUser переводит пользователя из pending в rejected.
func (r *PostgresRepository) RejectUser(ctx context.Context, email string, adminID int64, reason string, at time.Time) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5
		 WHERE email = $1 AND status = $6
		 RETURNING `+userColumns,
		email, string(model.UserStatusRejected), adminID, at, reason, string(model.UserStatusPending),
	))
	if err == nil {
		return u, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainUserMiss(ctx, email)
	}
	return nil, fmt.Errorf("reject user: %w", err)
}

// explainUserMiss различает отсутствие пользователя и уже завершённый переход.
func (r *PostgresRepository) explainUserMiss(ctx context.Context, email string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM users WHERE email = $1`, email).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("select user status: %w", err)
	}
	return fmt.Errorf("%w: status %s", ErrUserAlreadyResolved, status)
}

// CreditUser начисляет пользователю средства и монеты.
func (r *PostgresRepository) CreditUser(ctx context.Context, userID, amount, coins int64) (*model.User, error) {
	var u *model.User
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx,
			`UPDATE users
			 SET total_balance = total_balance + $2, total_coins = total_coins + $3
			 WHERE id = $1
			 RETURNING `+userColumns,
			userID, amount, coins,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("credit user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanAdmin(row pgx.Row) (*model.Admin, error) {
	var (
		a    model.Admin
		role string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.Permissions, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}

// CreateAdmin создаёт сотрудника.
func (r *PostgresRepository) CreateAdmin(ctx context.Context, a model.Admin) (int64, error) {
	permissions := a.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admins (name, email, password_hash, role, permissions) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.Name, a.Email, a.PasswordHash, string(a.Role), permissions,
	).Scan(&id)
	if err != nil {
		if c, ok := uniqueViolation(err); ok && c == constraintAdminEmail {
			return 0, fmt.Errorf("%w: %s", ErrAdminExists, a.Email)
		}
		return 0, fmt.Errorf("create admin: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) getAdmin(ctx context.Context, where string, arg any) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

// GetAdminByEmail возвращает сотрудника по email.
func (r *PostgresRepository) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	return r.getAdmin(ctx, `email = $1`, email)
}

// GetAdminByID возвращает сотрудника по идентификатору.
func (r *PostgresRepository) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	return r.getAdmin(ctx, `id = $1`, id)
}

func scanKYC(row pgx.Row) (*model.KYCRecord, error) {
	var k model.KYCRecord
	err := row.Scan(&k.ID, &k.UserID, &k.FullName, &k.Email, &k.Address, &k.City, &k.State,
		&k.AadhaarNumber, &k.PANNumber, &k.AccountNumber, &k.Bank, &k.IFSC,
		&k.AadhaarImageURL, &k.PANImageURL, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateKYC сохраняет заявку KYC и отмечает у пользователя статус проверки.
// Уникальный индекс по user_id гарантирует не более одной заявки на пользователя.
func (r *PostgresRepository) CreateKYC(ctx context.Context, k model.KYCRecord) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO kyc_records
			 (user_id, full_name, email, address, city, state, aadhaar_no, pan_number,
			  account_no, bank, ifsc, aadhaar_image, pancard_image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING id`,
			k.UserID, k.FullName, nullable(k.Email), nullable(k.Address), nullable(k.City), nullable(k.State),
			k.AadhaarNumber, k.PANNumber, nullable(k.AccountNumber), nullable(k.Bank), nullable(k.IFSC),
			k.AadhaarImageURL, k.PANImageURL,
		).Scan(&id)
		if err != nil {
			if c, ok := uniqueViolation(err); ok {
				if c == constraintKYCUser {
					return ErrKYCExists
				}
				return ErrKYCDocumentInUse
			}
			return fmt.Errorf("insert kyc: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE users SET kyc_status = $2 WHERE id = $1`, k.UserID, string(model.KYCStatusPending))
		if err != nil {
			return fmt.Errorf("update kyc status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetKYCByUserID возвращает заявку KYC пользователя.
func (r *PostgresRepository) GetKYCByUserID(ctx context.Context, userID int64) (*model.KYCRecord, error) {
	k, err := scanKYC(r.pool.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_records WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKYCNotFound
		}
		return nil, fmt.Errorf("get kyc: %w", err)
	}
	return k, nil
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		id     uuid.UUID
		status string
	)
	if err := row.Scan(&id, &w.UserID, &w.Amount, &status, &w.RequestedAt, &w.ResolvedBy, &w.ResolvedAt, &w.RejectionReason); err != nil {
		return nil, err
	}
	w.ID = id.String()
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}

func (r *PostgresRepository) queryWithdrawals(ctx context.Context, query string, args ...any) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// lockUser блокирует строку пользователя до конца транзакции и возвращает статус и баланс.
func lockUser(ctx context.Context, tx pgx.Tx, userID int64) (model.UserStatus, int64, error) {
	var (
		status  string
		balance int64
	)
	err := tx.QueryRow(ctx, `SELECT status, total_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&status, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, ErrUserNotFound
		}
		return "", 0, fmt.Errorf("lock user for update: %w", err)
	}
	return model.UserStatus(status), balance, nil
}

// lockPendingWithdrawal блокирует строку заявки и проверяет, что она ещё не обработана.
func lockPendingWithdrawal(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("lock withdrawal for update: %w", err)
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, fmt.Errorf("%w: status %s", ErrWithdrawalAlreadyResolved, w.Status)
	}
	return w, nil
}

// CreateWithdrawal создаёт заявку на вывод. Использует блокировку строки пользователя,
// чтобы проверка баланса и статуса видела зафиксированное состояние.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, userID, amount int64, at time.Time) (*model.Withdrawal, error) {
	return r.createWithdrawal(ctx, uuid.New(), userID, amount, at)
}

// createWithdrawal вставляет заявку с заранее выбранным id. Повтор после
// потерянного ответа на COMMIT возвращает уже сохранённую заявку.
func (r *PostgresRepository) createWithdrawal(ctx context.Context, id uuid.UUID, userID, amount int64, at time.Time) (*model.Withdrawal, error) {
	var w *model.Withdrawal
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
		switch {
		case err == nil:
			w = existing
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("select withdrawal: %w", err)
		}

		status, balance, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if amount > balance {
			return ErrInsufficientBalance
		}
		if status != model.UserStatusApproved {
			return ErrUserNotApproved
		}

		w, err = scanWithdrawal(tx.QueryRow(ctx,
			`INSERT INTO withdrawals (id, user_id, amount, status, requested_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING
			 RETURNING `+withdrawalColumns,
			id, userID, amount, string(model.WithdrawalStatusPending), at,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			w, err = scanWithdrawal(tx.QueryRow(ctx,
				`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
		}
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetWithdrawal возвращает заявку на вывод по идентификатору.
func (r *PostgresRepository) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	wid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrWithdrawalNotFound
	}
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, wid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ListPendingWithdrawals возвращает все необработанные заявки, старые первыми.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	return r.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = $1 ORDER BY requested_at, id`,
		string(model.WithdrawalStatusPending),
	)
}

// ListWithdrawalsByUser возвращает историю заявок пользователя, новые первыми.
func (r *PostgresRepository) ListWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return r.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY requested_at DESC, id`,
		userID,
	)
}

// ProcessWithdrawal списывает сумму заявки с баланса и переводит заявку в processed.
// Списание и смена статуса выполняются в одной транзакции; строки блокируются
// в порядке заявка → пользователь.
func (r *PostgresRepository) ProcessWithdrawal(ctx context.Context, id string, adminID int64, at time.Time) (*model.Withdrawal, error) {
	wid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrWithdrawalNotFound
	}

	var res *model.Withdrawal
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockPendingWithdrawal(ctx, tx, wid)
		if err != nil {
			return err
		}

		_, balance, err := lockUser(ctx, tx, w.UserID)
		if err != nil {
			return err
		}
		if w.Amount > balance {
			return ErrInsufficientBalance
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET total_balance = total_balance - $2 WHERE id = $1`,
			w.UserID, w.Amount,
		); err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}

		res, err = scanWithdrawal(tx.QueryRow(ctx,
			`UPDATE withdrawals SET status = $2, resolved_by = $3, resolved_at = $4
			 WHERE id = $1 AND status = $5
			 RETURNING `+withdrawalColumns,
			wid, string(model.WithdrawalStatusProcessed), adminID, at, string(model.WithdrawalStatusPending),
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalAlreadyResolved
			}
			return fmt.Errorf("update withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RejectWithdrawal переводит заявку в rejected, не затрагивая баланс.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, id string, adminID int64, reason string, at time.Time) (*model.Withdrawal, error) {
	wid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrWithdrawalNotFound
	}

	var res *model.Withdrawal
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockPendingWithdrawal(ctx, tx, wid); err != nil {
			return err
		}

		var err error
		res, err = scanWithdrawal(tx.QueryRow(ctx,
			`UPDATE withdrawals SET status = $2, resolved_by = $3, resolved_at = $4, rejection_reason = $5
			 WHERE id = $1 AND status = $6
			 RETURNING `+withdrawalColumns,
			wid, string(model.WithdrawalStatusRejected), adminID, at, reason, string(model.WithdrawalStatusPending),
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalAlreadyResolved
			}
			return fmt.Errorf("update withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
