// Package model содержит доменные сущности сервиса выплат.
package model

import "time"

// Role описывает роль аутентифицированного субъекта.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// IsStaff сообщает, может ли роль выполнять административные переходы.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgent
}

// Principal описывает аутентифицированного субъекта запроса.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// UserStatus описывает статус одобрения аккаунта пользователя.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

// KYCStatus описывает состояние верификации личности пользователя.
type KYCStatus string

const (
	KYCStatusNone    KYCStatus = "not_submitted"
	KYCStatusPending KYCStatus = "pending"
)

// User представляет аккаунт пользователя вместе с балансом.
// Суммы хранятся в минимальных единицах (пайсах).
type User struct {
	ID                int64
	UniqueID          *string
	Name              string
	Phone             string
	Email             string
	BankAccountNumber string
	PasswordHash      []byte
	Status            UserStatus
	KYCStatus         KYCStatus
	ApprovedBy        *int64
	ApprovedAt        *time.Time
	RejectionReason   *string
	TotalBalance      int64
	TotalCoins        int64
	CreatedAt         time.Time
}

// NewUser содержит данные для регистрации пользователя.
type NewUser struct {
	Name              string
	Phone             string
	Email             string
	BankAccountNumber string
	PasswordHash      []byte
}

// Admin представляет сотрудника (администратора или агента).
type Admin struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Role         Role
	Permissions  []string
	CreatedAt    time.Time
}

// Profile объединяет данные профиля пользователя или сотрудника.
type Profile struct {
	User           *User
	Admin          *Admin
	ApprovedByName string
}

// KYCRecord описывает единственную заявку на верификацию пользователя.
type KYCRecord struct {
	ID              int64
	UserID          int64
	FullName        string
	Email           string
	Address         string
	City            string
	State           string
	AadhaarNumber   string
	PANNumber       string
	AccountNumber   string
	Bank            string
	IFSC            string
	AadhaarImageURL *string
	PANImageURL     *string
	CreatedAt       time.Time
}

// WithdrawalStatus описывает статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusProcessed WithdrawalStatus = "processed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Withdrawal описывает заявку на вывод средств с баланса пользователя.
type Withdrawal struct {
	ID              string
	UserID          int64
	Amount          int64
	Status          WithdrawalStatus
	RequestedAt     time.Time
	ResolvedBy      *int64
	ResolvedAt      *time.Time
	RejectionReason *string
}

// Balance содержит накопленные пользователем средства и монеты.
type Balance struct {
	TotalBalance int64
	TotalCoins   int64
}
