package service

import (
	"context"
	"fmt"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuditServiceImpl implements ports.ReconciliationAuditor: it recomputes an
// account's balance from completed history and checks both it and the cached
// movement counters against the balance column. Drift beyond tolerance is
// reported and logged, never propagated to the request that tripped the audit.
type AuditServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	tolerance   decimal.Decimal
	log         zerolog.Logger
}

// NewAuditService creates a new AuditServiceImpl.
func NewAuditService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	tolerance decimal.Decimal,
	log zerolog.Logger,
) *AuditServiceImpl {
	return &AuditServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		tolerance:   tolerance,
		log:         log,
	}
}

// AuditBalance reconciles one account against two sources of truth: the
// balance recomputed from completed history, and the account's own cached
// movement counters. The report is returned even when the balance drifted;
// IsValid carries the verdict.
func (s *AuditServiceImpl) AuditBalance(ctx context.Context, accountID uuid.UUID) (*domain.BalanceAudit, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	sums, err := s.txRepo.SumCompleted(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum completed history: %w", err))
	}

	calculated := sums.Incoming.Sub(sums.Outgoing)
	difference := account.Balance.Sub(calculated)
	counterDrift := account.CounterDrift()

	audit := &domain.BalanceAudit{
		AccountID:         accountID,
		CurrentBalance:    account.Balance,
		CalculatedBalance: calculated,
		Difference:        difference,
		IsValid: difference.Abs().LessThanOrEqual(s.tolerance) &&
			counterDrift.Abs().LessThanOrEqual(s.tolerance),
	}

	if !audit.IsValid {
		auditErr := apperror.ErrAuditFailure(accountID.String(), difference.String())
		s.log.Error().
			Err(auditErr).
			Str("account_id", accountID.String()).
			Str("current_balance", account.Balance.String()).
			Str("calculated_balance", calculated.String()).
			Str("difference", difference.String()).
			Str("counter_drift", counterDrift.String()).
			Msg("balance reconciliation drift detected")
	}

	return audit, nil
}
