package service

import (
	"context"
	"testing"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/internal/core/ports/mocks"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type engineTestDeps struct {
	engine      *TransactionEngineImpl
	txRepo      *mocks.MockTransactionRepository
	orderRepo   *mocks.MockOrderRepository
	productRepo *mocks.MockProductRepository
	accountRepo *mocks.MockAccountRepository
	transactor  *mocks.MockDBTransactor
	publisher   *mocks.MockEventPublisher
	ctrl        *gomock.Controller
}

func setupEngine(t *testing.T) *engineTestDeps {
	ctrl := gomock.NewController(t)
	d := &engineTestDeps{
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		orderRepo:   mocks.NewMockOrderRepository(ctrl),
		productRepo: mocks.NewMockProductRepository(ctrl),
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		publisher:   mocks.NewMockEventPublisher(ctrl),
		ctrl:        ctrl,
	}
	ledger := NewAccountLedger(d.accountRepo, zerolog.Nop())
	d.engine = NewTransactionEngine(
		d.txRepo, d.orderRepo, d.productRepo, ledger,
		d.transactor, d.publisher, nil, zerolog.Nop(),
	)
	return d
}

func (d *engineTestDeps) expectUnit() *mockTx {
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	return tx
}

func (d *engineTestDeps) expectApplyComplete(tx *mockTx, source, dest uuid.UUID) {
	d.accountRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, gomock.Any()).
		Return(&domain.Account{ID: source}, nil).Times(2)
	d.accountRepo.EXPECT().ApplyDelta(gomock.Any(), tx, source,
		gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().ApplyDelta(gomock.Any(), tx, dest,
		gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
}

func holdTransaction(transferType domain.TransferType, meta domain.TransferMeta, amount decimal.Decimal) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:         uuid.New(),
		Type:       transferType,
		State:      domain.TransferStateHold,
		AccountAID: uuid.New(),
		AccountBID: uuid.New(),
		AmountOut:  amount,
		AmountIn:   amount,
		Currency:   "USD",
		Meta:       meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ==================== InitiateTransfer ====================

func TestEngine_InitiateTransfer_SameAccount(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	id := uuid.New()
	result, err := d.engine.InitiateTransfer(context.Background(), id, id,
		decimal.NewFromInt(10), domain.TransferTypeCredit, domain.PlainTransferMeta())
	assert.Nil(t, result)
	assertAppError(t, err, "LED_003")
}

func TestEngine_InitiateTransfer_NonPositiveAmount(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		result, err := d.engine.InitiateTransfer(context.Background(), uuid.New(), uuid.New(),
			amount, domain.TransferTypeCredit, domain.PlainTransferMeta())
		assert.Nil(t, result)
		assertAppError(t, err, "LED_002")
	}
}

func TestEngine_InitiateTransfer_CreatesHold(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	source := uuid.New()
	dest := uuid.New()

	d.accountRepo.EXPECT().GetByID(gomock.Any(), source).
		Return(&domain.Account{ID: source, Currency: "USD"}, nil)

	tx := d.expectUnit()
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransferStateHold, txn.State)
			assert.True(t, txn.AmountOut.Equal(txn.AmountIn))
			assert.Equal(t, "USD", txn.Currency)
			return nil
		})

	result, err := d.engine.InitiateTransfer(context.Background(), source, dest,
		decimal.NewFromInt(10), domain.TransferTypeCredit, domain.PlainTransferMeta())
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateHold, result.State)
	assert.Nil(t, result.CompletedAt)
}

// ==================== CompleteImmediately ====================

func TestEngine_CompleteImmediately_Success(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeCredit, domain.PlainTransferMeta(), decimal.NewFromInt(25))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.expectApplyComplete(tx, txn.AccountAID, txn.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, txn.ID).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompleteImmediately(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompleted, result.State)
	assert.NotNil(t, result.CompletedAt)
}

func TestEngine_CompleteImmediately_Idempotent(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	now := time.Now().UTC()
	txn := holdTransaction(domain.TransferTypeCredit, domain.PlainTransferMeta(), decimal.NewFromInt(25))
	txn.State = domain.TransferStateCompleted
	txn.CompletedAt = &now

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)

	result, err := d.engine.CompleteImmediately(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompleted, result.State)
	assert.Equal(t, now, *result.CompletedAt)
}

func TestEngine_CompleteImmediately_FailedIsConflict(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeCredit, domain.PlainTransferMeta(), decimal.NewFromInt(25))
	txn.State = domain.TransferStateFailed

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)

	result, err := d.engine.CompleteImmediately(context.Background(), txn.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_005")
}

func TestEngine_CompleteImmediately_NotFound(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	id := uuid.New()
	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(nil, nil)

	result, err := d.engine.CompleteImmediately(context.Background(), id)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_004")
}

func TestEngine_CompleteImmediately_DirectPurchaseCreatesOrder(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	productID := uuid.New()
	sellerID := uuid.New()
	buyerUserID := uuid.New()
	txn := holdTransaction(domain.TransferTypePurchase, domain.PurchaseMeta(productID), decimal.NewFromInt(100))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.expectApplyComplete(tx, txn.AccountAID, txn.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, txn.ID).Return(nil)

	d.productRepo.EXPECT().GetByID(gomock.Any(), productID).Return(&domain.Product{
		ID:           productID,
		Price:        decimal.NewFromInt(100),
		Currency:     "USD",
		SellerUserID: sellerID,
		Active:       true,
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), txn.AccountAID).
		Return(&domain.Account{ID: txn.AccountAID, UserID: buyerUserID}, nil)

	var createdOrder *domain.Order
	d.orderRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, order *domain.Order) error {
			createdOrder = order
			return nil
		})
	d.txRepo.EXPECT().UpdateMeta(gomock.Any(), tx, txn.ID, gomock.Any()).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompleteImmediately(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, createdOrder)
	assert.Equal(t, domain.OrderStatusPaid, createdOrder.Status)
	assert.Equal(t, buyerUserID, createdOrder.BuyerUserID)
	assert.Equal(t, sellerID, createdOrder.SellerUserID)
	assert.True(t, createdOrder.TotalPrice.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, result.Meta.OrderID)
	assert.Equal(t, createdOrder.ID, *result.Meta.OrderID)
}

func TestEngine_CompleteImmediately_PartialLegSkipsOrder(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypePurchase,
		domain.PartialPurchaseMeta(uuid.New()), decimal.NewFromInt(30))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.expectApplyComplete(tx, txn.AccountAID, txn.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, txn.ID).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompleteImmediately(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompleted, result.State)
	assert.Nil(t, result.Meta.OrderID)
}

// ==================== CompletePayTransaction ====================

func TestEngine_CompletePayTransaction_PlainRefill(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeRefill, domain.RefillMeta(), decimal.NewFromInt(10))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.expectApplyComplete(tx, txn.AccountAID, txn.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, txn.ID).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompletePayTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompleted, result.State)
	assert.Empty(t, result.Meta.PurchaseTransactionIDs)
}

func TestEngine_CompletePayTransaction_TerminalIsNoOp(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeRefill, domain.RefillMeta(), decimal.NewFromInt(10))
	txn.State = domain.TransferStateCompleted

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)

	result, err := d.engine.CompletePayTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompleted, result.State)
}

func TestEngine_CompletePayTransaction_ProductRefillSettlesPurchase(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	productID := uuid.New()
	sellerID := uuid.New()
	buyerUserID := uuid.New()
	refill := holdTransaction(domain.TransferTypeRefill,
		domain.ProductRefillMeta(productID), decimal.NewFromInt(100))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, refill.ID).Return(refill, nil)

	// Refill leg completion.
	d.expectApplyComplete(tx, refill.AccountAID, refill.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, refill.ID).Return(nil)

	// Derived purchase leg: reversed direction, same amount.
	var purchaseLeg *domain.Transaction
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, txn *domain.Transaction) error {
			purchaseLeg = txn
			assert.Equal(t, domain.TransferTypePurchase, txn.Type)
			assert.Equal(t, refill.AccountBID, txn.AccountAID)
			assert.Equal(t, refill.AccountAID, txn.AccountBID)
			assert.True(t, txn.AmountOut.Equal(refill.AmountIn))
			return nil
		})
	d.expectApplyComplete(tx, refill.AccountBID, refill.AccountAID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, gomock.Any()).Return(nil)

	// Order from the full product price.
	d.productRepo.EXPECT().GetByID(gomock.Any(), productID).Return(&domain.Product{
		ID:           productID,
		Price:        decimal.NewFromInt(100),
		Currency:     "USD",
		SellerUserID: sellerID,
		Active:       true,
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), refill.AccountBID).
		Return(&domain.Account{ID: refill.AccountBID, UserID: buyerUserID}, nil)

	var createdOrder *domain.Order
	d.orderRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, order *domain.Order) error {
			createdOrder = order
			return nil
		})
	d.txRepo.EXPECT().UpdateMeta(gomock.Any(), tx, refill.ID, gomock.Any()).Return(nil).Times(2)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompletePayTransaction(context.Background(), refill.ID)
	require.NoError(t, err)
	require.NotNil(t, purchaseLeg)
	require.NotNil(t, createdOrder)
	assert.Equal(t, buyerUserID, createdOrder.BuyerUserID)
	assert.Equal(t, []uuid.UUID{purchaseLeg.ID}, result.Meta.PurchaseTransactionIDs)
	require.NotNil(t, result.Meta.OrderID)
	assert.Equal(t, createdOrder.ID, *result.Meta.OrderID)
}

func TestEngine_CompletePayTransaction_PartialLinksBothLegs(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	productID := uuid.New()
	balanceLegID := uuid.New()
	refill := holdTransaction(domain.TransferTypeRefill,
		domain.PartialRefillMeta(productID, balanceLegID), decimal.NewFromInt(60))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, refill.ID).Return(refill, nil)
	d.expectApplyComplete(tx, refill.AccountAID, refill.AccountBID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, refill.ID).Return(nil)

	var purchaseLeg *domain.Transaction
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, txn *domain.Transaction) error {
			purchaseLeg = txn
			return nil
		})
	d.expectApplyComplete(tx, refill.AccountBID, refill.AccountAID)
	d.txRepo.EXPECT().MarkCompleted(gomock.Any(), tx, gomock.Any()).Return(nil)

	d.productRepo.EXPECT().GetByID(gomock.Any(), productID).Return(&domain.Product{
		ID:       productID,
		Price:    decimal.NewFromInt(100),
		Currency: "USD",
		Active:   true,
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), refill.AccountBID).
		Return(&domain.Account{ID: refill.AccountBID, UserID: uuid.New()}, nil)
	d.orderRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().UpdateMeta(gomock.Any(), tx, refill.ID, gomock.Any()).Return(nil).Times(2)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.CompletePayTransaction(context.Background(), refill.ID)
	require.NoError(t, err)
	require.NotNil(t, purchaseLeg)

	// Balance leg first, card leg second.
	assert.Equal(t, []uuid.UUID{balanceLegID, purchaseLeg.ID}, result.Meta.PurchaseTransactionIDs)
}

// ==================== FailTransaction ====================

func TestEngine_FailTransaction_Success(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeRefill, domain.RefillMeta(), decimal.NewFromInt(10))

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().MarkFailed(gomock.Any(), tx, txn.ID).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.FailTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateFailed, result.State)
}

func TestEngine_FailTransaction_Idempotent(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeRefill, domain.RefillMeta(), decimal.NewFromInt(10))
	txn.State = domain.TransferStateFailed

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	result, err := d.engine.FailTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateFailed, result.State)
}

func TestEngine_FailTransaction_CompletedIsConflict(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	txn := holdTransaction(domain.TransferTypeRefill, domain.RefillMeta(), decimal.NewFromInt(10))
	txn.State = domain.TransferStateCompleted

	tx := d.expectUnit()
	d.txRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, txn.ID).Return(txn, nil)

	result, err := d.engine.FailTransaction(context.Background(), txn.ID)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_005")
}

// ==================== Readers ====================

func TestEngine_CalculateBalanceFromHistory(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	accountID := uuid.New()
	d.txRepo.EXPECT().SumCompleted(gomock.Any(), accountID).Return(&ports.BalanceSums{
		Incoming: decimal.NewFromInt(300),
		Outgoing: decimal.NewFromInt(120),
	}, nil)

	balance, err := d.engine.CalculateBalanceFromHistory(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(180)))
}

func TestEngine_FindByID_NotFound(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	id := uuid.New()
	d.txRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	result, err := d.engine.FindByID(context.Background(), id)
	assert.Nil(t, result)
	assertAppError(t, err, "LED_004")
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
