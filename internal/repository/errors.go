// Package repository содержит реализации хранилища аккаунтов, KYC и заявок на вывод.
package repository

import "errors"

var (
	// ErrUserExists возвращается при регистрации с уже занятым email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyResolved возвращается, если пользователь уже одобрен или отклонён.
	ErrUserAlreadyResolved = errors.New("user already approved or rejected")
	// ErrUserNotApproved возвращается, если операция требует одобренного аккаунта.
	ErrUserNotApproved = errors.New("user is not approved")
	// ErrUniqueIDTaken возвращается при коллизии публичного идентификатора.
	ErrUniqueIDTaken = errors.New("unique id already taken")

	// ErrAdminExists возвращается при создании сотрудника с занятым email.
	ErrAdminExists = errors.New("admin already exists")
	// ErrAdminNotFound возвращается, если сотрудник не найден.
	ErrAdminNotFound = errors.New("admin not found")

	// ErrKYCExists возвращается при повторной подаче KYC.
	ErrKYCExists = errors.New("kyc already submitted for this user")
	// ErrKYCDocumentInUse возвращается, если номер Aadhaar или PAN уже зарегистрирован.
	ErrKYCDocumentInUse = errors.New("aadhaar or pan already registered")
	// ErrKYCNotFound возвращается, если пользователь не подавал KYC.
	ErrKYCNotFound = errors.New("kyc not found")

	// ErrWithdrawalNotFound возвращается, если заявка на вывод не найдена.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrWithdrawalAlreadyResolved возвращается, если заявка уже обработана или отклонена.
	ErrWithdrawalAlreadyResolved = errors.New("withdrawal already resolved")
	// ErrInsufficientBalance возвращается при попытке вывода суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
