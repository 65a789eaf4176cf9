package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
	"github.com/mmeshcher/octa-payouts/internal/repository"
	"github.com/mmeshcher/octa-payouts/internal/storage"
	"github.com/mmeshcher/octa-payouts/internal/validation"
)

// KYCSubmission содержит данные заявки на верификацию и необязательные сканы документов.
type KYCSubmission struct {
	FullName      string
	Email         string
	Address       string
	City          string
	State         string
	AadhaarNumber string
	PANNumber     string
	AccountNumber string
	Bank          string
	IFSC          string
	AadhaarImage  []byte
	PANImage      []byte
}

// SubmitKYC сохраняет единственную заявку пользователя на верификацию и
// переводит его kycStatus в pending.
func (s *Service) SubmitKYC(ctx context.Context, p model.Principal, sub KYCSubmission) (*model.KYCRecord, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}

	rec := model.KYCRecord{
		UserID:        p.ID,
		FullName:      strings.TrimSpace(sub.FullName),
		Email:         strings.TrimSpace(sub.Email),
		Address:       strings.TrimSpace(sub.Address),
		City:          strings.TrimSpace(sub.City),
		State:         strings.TrimSpace(sub.State),
		AadhaarNumber: strings.ReplaceAll(strings.TrimSpace(sub.AadhaarNumber), " ", ""),
		PANNumber:     strings.ToUpper(strings.TrimSpace(sub.PANNumber)),
		AccountNumber: strings.TrimSpace(sub.AccountNumber),
		Bank:          strings.TrimSpace(sub.Bank),
		IFSC:          strings.ToUpper(strings.TrimSpace(sub.IFSC)),
	}
	if rec.FullName == "" || rec.AadhaarNumber == "" || rec.PANNumber == "" {
		return nil, invalid("full name, aadhaar number and pan number are required")
	}

	// Повторная заявка отклоняется до проверки формата полей.
	_, err := s.repo.GetKYCByUserID(ctx, p.ID)
	switch {
	case err == nil:
		return nil, s.fail("submit kyc", repository.ErrKYCExists, zap.Int64("userID", p.ID))
	case !errors.Is(err, repository.ErrKYCNotFound):
		return nil, s.fail("submit kyc", err, zap.Int64("userID", p.ID))
	}

	if err := validateKYC(rec); err != nil {
		return nil, err
	}

	if rec.AadhaarImageURL, err = s.uploadDocument(ctx, "aadhaar", p.ID, sub.AadhaarImage); err != nil {
		return nil, err
	}
	if rec.PANImageURL, err = s.uploadDocument(ctx, "pan", p.ID, sub.PANImage); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateKYC(ctx, rec)
	if err != nil {
		return nil, s.fail("submit kyc", err, zap.Int64("userID", p.ID))
	}
	s.logger.Info("kyc submitted", zap.Int64("userID", p.ID), zap.Int64("kycID", id))

	stored, err := s.repo.GetKYCByUserID(ctx, p.ID)
	if err != nil {
		s.logger.Warn("reload kyc record", zap.Int64("userID", p.ID), zap.Error(err))
		rec.ID = id
		rec.CreatedAt = s.now()
		return &rec, nil
	}
	return stored, nil
}

// GetKYC возвращает заявку на верификацию текущего пользователя.
func (s *Service) GetKYC(ctx context.Context, p model.Principal) (*model.KYCRecord, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetKYCByUserID(ctx, p.ID)
	if err != nil {
		return nil, s.fail("get kyc", err, zap.Int64("userID", p.ID))
	}
	return rec, nil
}

func (s *Service) uploadDocument(ctx context.Context, kind string, userID int64, data []byte) (*string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if s.documents == nil {
		return nil, invalid("document uploads are not configured")
	}

	key := storage.KYCKey(userID, kind)
	url, err := s.documents.Upload(ctx, key, data)
	if err != nil {
		return nil, s.fail("upload kyc document", err, zap.Int64("userID", userID), zap.String("key", key))
	}
	return &url, nil
}

func validateKYC(rec model.KYCRecord) error {
	if !validation.IsValidAadhaar(rec.AadhaarNumber) {
		return invalid("invalid aadhaar number")
	}
	if !validation.IsValidPAN(rec.PANNumber) {
		return invalid("invalid pan number")
	}
	if rec.Email != "" && !validation.IsValidEmail(rec.Email) {
		return invalid("invalid email")
	}
	if rec.IFSC != "" && !validation.IsValidIFSC(rec.IFSC) {
		return invalid("invalid ifsc code")
	}
	return nil
}
