package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/octa-payouts/internal/model"
)

// RequestWithdrawal создаёт заявку на вывод для текущего пользователя.
// Баланс при этом не списывается и не резервируется: достаточность баланса
// повторно проверяется при обработке заявки.
func (s *Service) RequestWithdrawal(ctx context.Context, p model.Principal, amount int64) (*model.Withdrawal, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, invalid("withdraw amount must be positive")
	}

	w, err := s.repo.CreateWithdrawal(ctx, p.ID, amount, s.now())
	if err != nil {
		return nil, s.fail("request withdrawal", err, zap.Int64("userID", p.ID), zap.Int64("amount", amount))
	}

	s.metrics.WithdrawalRequested(amount)
	s.logger.Info("withdrawal requested",
		zap.String("withdrawalID", w.ID), zap.Int64("userID", p.ID), zap.Int64("amount", amount))
	return w, nil
}

// ListPendingWithdrawals возвращает все необработанные заявки, старые первыми.
func (s *Service) ListPendingWithdrawals(ctx context.Context, p model.Principal) ([]model.Withdrawal, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	ws, err := s.repo.ListPendingWithdrawals(ctx)
	if err != nil {
		return nil, s.fail("list pending withdrawals", err)
	}
	return ws, nil
}

// ListWithdrawalsByUser возвращает историю заявок текущего пользователя.
func (s *Service) ListWithdrawalsByUser(ctx context.Context, p model.Principal) ([]model.Withdrawal, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	ws, err := s.repo.ListWithdrawalsByUser(ctx, p.ID)
	if err != nil {
		return nil, s.fail("list withdrawals", err, zap.Int64("userID", p.ID))
	}
	return ws, nil
}

// ProcessWithdrawal списывает сумму заявки с баланса и завершает её.
// Повторный вызов для уже обработанной заявки возвращает конфликт.
func (s *Service) ProcessWithdrawal(ctx context.Context, p model.Principal, id string) (*model.Withdrawal, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("withdrawal id is required")
	}

	w, err := s.repo.ProcessWithdrawal(ctx, id, p.ID, s.now())
	if err != nil {
		return nil, s.fail("process withdrawal", err, zap.String("withdrawalID", id), zap.Int64("adminID", p.ID))
	}

	s.metrics.WithdrawalResolved(model.WithdrawalStatusProcessed, w.Amount)
	s.logger.Info("withdrawal processed",
		zap.String("withdrawalID", w.ID), zap.Int64("userID", w.UserID), zap.Int64("amount", w.Amount), zap.Int64("adminID", p.ID))
	return w, nil
}

// RejectWithdrawal отклоняет заявку, не затрагивая баланс.
func (s *Service) RejectWithdrawal(ctx context.Context, p model.Principal, id, reason string) (*model.Withdrawal, error) {
	if err := requireStaff(p); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("withdrawal id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("rejection reason is required")
	}

	w, err := s.repo.RejectWithdrawal(ctx, id, p.ID, reason, s.now())
	if err != nil {
		return nil, s.fail("reject withdrawal", err, zap.String("withdrawalID", id), zap.Int64("adminID", p.ID))
	}

	s.metrics.WithdrawalResolved(model.WithdrawalStatusRejected, w.Amount)
	s.logger.Info("withdrawal rejected",
		zap.String("withdrawalID", w.ID), zap.Int64("userID", w.UserID), zap.Int64("adminID", p.ID))
	return w, nil
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, p model.Principal) (*model.Balance, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	u, err := s.repo.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, s.fail("get balance", err, zap.Int64("userID", p.ID))
	}
	return &model.Balance{TotalBalance: u.TotalBalance, TotalCoins: u.TotalCoins}, nil
}
