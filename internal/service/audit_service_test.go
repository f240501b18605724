package service

import (
	"context"
	"testing"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAuditService(t *testing.T) (*AuditServiceImpl, *mocks.MockAccountRepository, *mocks.MockTransactionRepository, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewAuditService(accountRepo, txRepo, decimal.RequireFromString("0.01"), zerolog.Nop())
	return svc, accountRepo, txRepo, ctrl
}

func TestAuditService_Balanced(t *testing.T) {
	svc, accountRepo, txRepo, ctrl := setupAuditService(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(&domain.Account{
		ID:       accountID,
		Balance:  decimal.NewFromInt(180),
		Incoming: decimal.NewFromInt(300),
		Outgoing: decimal.NewFromInt(120),
	}, nil)
	txRepo.EXPECT().SumCompleted(gomock.Any(), accountID).Return(&ports.BalanceSums{
		Incoming: decimal.NewFromInt(300),
		Outgoing: decimal.NewFromInt(120),
	}, nil)

	audit, err := svc.AuditBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, audit.IsValid)
	assert.True(t, audit.Difference.IsZero())
	assert.True(t, audit.CalculatedBalance.Equal(decimal.NewFromInt(180)))
}

func TestAuditService_WithinTolerance(t *testing.T) {
	svc, accountRepo, txRepo, ctrl := setupAuditService(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(&domain.Account{
		ID:       accountID,
		Balance:  decimal.RequireFromString("100.01"),
		Incoming: decimal.NewFromInt(100),
	}, nil)
	txRepo.EXPECT().SumCompleted(gomock.Any(), accountID).Return(&ports.BalanceSums{
		Incoming: decimal.NewFromInt(100),
		Outgoing: decimal.Zero,
	}, nil)

	audit, err := svc.AuditBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, audit.IsValid)
}

func TestAuditService_DriftDetected(t *testing.T) {
	svc, accountRepo, txRepo, ctrl := setupAuditService(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(&domain.Account{
		ID:       accountID,
		Balance:  decimal.NewFromInt(200),
		Incoming: decimal.NewFromInt(200),
	}, nil)
	txRepo.EXPECT().SumCompleted(gomock.Any(), accountID).Return(&ports.BalanceSums{
		Incoming: decimal.NewFromInt(150),
		Outgoing: decimal.Zero,
	}, nil)

	audit, err := svc.AuditBalance(context.Background(), accountID)
	require.NoError(t, err, "drift is reported in the result, not as an error")
	assert.False(t, audit.IsValid)
	assert.True(t, audit.Difference.Equal(decimal.NewFromInt(50)))
}

func TestAuditService_CounterDriftDetected(t *testing.T) {
	svc, accountRepo, txRepo, ctrl := setupAuditService(t)
	defer ctrl.Finish()

	// History agrees with the cached balance, but the movement counters do
	// not: incoming - outgoing says 200 while the balance column says 150.
	accountID := uuid.New()
	accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(&domain.Account{
		ID:       accountID,
		Balance:  decimal.NewFromInt(150),
		Incoming: decimal.NewFromInt(300),
		Outgoing: decimal.NewFromInt(100),
	}, nil)
	txRepo.EXPECT().SumCompleted(gomock.Any(), accountID).Return(&ports.BalanceSums{
		Incoming: decimal.NewFromInt(250),
		Outgoing: decimal.NewFromInt(100),
	}, nil)

	audit, err := svc.AuditBalance(context.Background(), accountID)
	require.NoError(t, err)
	assert.False(t, audit.IsValid)
	assert.True(t, audit.Difference.IsZero())
}

func TestAuditService_AccountNotFound(t *testing.T) {
	svc, accountRepo, _, ctrl := setupAuditService(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	accountRepo.EXPECT().GetByID(gomock.Any(), accountID).Return(nil, nil)

	audit, err := svc.AuditBalance(context.Background(), accountID)
	assert.Nil(t, audit)
	assertAppError(t, err, "LED_004")
}
