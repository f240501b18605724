package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountLedger owns account balance mutation. Balances move only here, inside
// the same store transaction that makes a ledger row COMPLETED.
type AccountLedger struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewAccountLedger creates a new AccountLedger.
func NewAccountLedger(accountRepo ports.AccountRepository, log zerolog.Logger) *AccountLedger {
	return &AccountLedger{
		accountRepo: accountRepo,
		log:         log,
	}
}

// GetByID fetches an account, NotFound when absent.
func (l *AccountLedger) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := l.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// GetByUserID fetches a user's account, NotFound when absent.
func (l *AccountLedger) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	account, err := l.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by user: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// GetOrCreate returns the user's account, provisioning one on first use.
// The unique constraint on user_id decides races between concurrent
// first requests; the loser re-reads the winner's row.
func (l *AccountLedger) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*domain.Account, error) {
	account, err := l.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by user: %w", err))
	}
	if account != nil {
		return account, nil
	}

	now := time.Now().UTC()
	account = &domain.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.accountRepo.Create(ctx, account); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, readErr := l.accountRepo.GetByUserID(ctx, userID)
			if readErr != nil {
				return nil, apperror.InternalError(fmt.Errorf("re-read account after conflict: %w", readErr))
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	l.log.Info().
		Str("account_id", account.ID.String()).
		Str("user_id", userID.String()).
		Msg("account provisioned")

	return account, nil
}

// ApplyComplete moves the transaction's amounts between the two accounts
// within the caller's store transaction: source loses amountOut, destination
// gains amountIn, and the movement counters advance.
func (l *AccountLedger) ApplyComplete(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if err := l.lockPair(ctx, tx, txn.AccountAID, txn.AccountBID); err != nil {
		return err
	}

	if err := l.accountRepo.ApplyDelta(ctx, tx, txn.AccountAID,
		txn.AmountOut.Neg(), decimal.Zero, txn.AmountOut); err != nil {
		return fmt.Errorf("debit source account: %w", err)
	}
	if err := l.accountRepo.ApplyDelta(ctx, tx, txn.AccountBID,
		txn.AmountIn, txn.AmountIn, decimal.Zero); err != nil {
		return fmt.Errorf("credit destination account: %w", err)
	}
	return nil
}

// ApplyReverse undoes ApplyComplete. Compensation path: unused by the HOLD
// state machine, which never moves balances before completion.
func (l *AccountLedger) ApplyReverse(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if err := l.lockPair(ctx, tx, txn.AccountAID, txn.AccountBID); err != nil {
		return err
	}

	if err := l.accountRepo.ApplyDelta(ctx, tx, txn.AccountAID,
		txn.AmountOut, decimal.Zero, txn.AmountOut.Neg()); err != nil {
		return fmt.Errorf("restore source account: %w", err)
	}
	if err := l.accountRepo.ApplyDelta(ctx, tx, txn.AccountBID,
		txn.AmountIn.Neg(), txn.AmountIn.Neg(), decimal.Zero); err != nil {
		return fmt.Errorf("restore destination account: %w", err)
	}
	return nil
}

// lockPair takes FOR UPDATE locks on both accounts in ascending id order so
// concurrent transfers over the same pair can never deadlock.
func (l *AccountLedger) lockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) error {
	first, second := a, b
	if b.String() < a.String() {
		first, second = b, a
	}

	for _, id := range []uuid.UUID{first, second} {
		account, err := l.accountRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock account %s: %w", id, err)
		}
		if account == nil {
			return apperror.ErrNotFound("account")
		}
	}
	return nil
}
