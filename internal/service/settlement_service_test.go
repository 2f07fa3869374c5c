package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports/mocks"
	"payout-settler/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementFixture struct {
	ledger    *mocks.MockClaimLedger
	payouts   *mocks.MockPayoutRepository
	users     *mocks.MockUserRepository
	audit     *mocks.MockAuditService
	publisher *mocks.MockEventPublisher
	evm       *mocks.MockChainDispatcher
	cosmos    *mocks.MockChainDispatcher
	svc       *SettlementServiceImpl
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	ctrl := gomock.NewController(t)
	f := &settlementFixture{
		ledger:    mocks.NewMockClaimLedger(ctrl),
		payouts:   mocks.NewMockPayoutRepository(ctrl),
		users:     mocks.NewMockUserRepository(ctrl),
		audit:     mocks.NewMockAuditService(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		evm:       mocks.NewMockChainDispatcher(ctrl),
		cosmos:    mocks.NewMockChainDispatcher(ctrl),
	}
	f.evm.EXPECT().Kind().Return(domain.ChainKindAccount).AnyTimes()
	f.cosmos.EXPECT().Kind().Return(domain.ChainKindSequence).AnyTimes()

	selector := NewChainSelector("cosmos", f.evm, f.cosmos)
	f.svc = NewSettlementService(f.ledger, f.payouts, f.users, selector, f.audit, f.publisher, SettlementConfig{
		Topic:        "misc",
		MarkAttempts: 3,
		MarkBackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}, newTestLogger())
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func evmBatch() *domain.SettlementBatch {
	b := domain.NewSettlementBatch(testEVMWallet, "u1")
	b.Add(payout("A", testEVMWallet, "u1", "5"), decimal.NewFromInt(5))
	b.Add(payout("B", testEVMWallet, "u1", "7"), decimal.NewFromInt(7))
	return b
}

func evmResult() *domain.DispatchResult {
	return &domain.DispatchResult{
		Chain:         domain.ChainKindAccount,
		TxHash:        "0xhash",
		RawSignedTx:   []byte{0x01, 0x02},
		Counter:       17,
		GasPrice:      "3000000000",
		SignerAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		SentAmount:    decimal.NewFromInt(12),
	}
}

func TestSettle_AccountBasedHappyPath(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	batch := evmBatch()
	referrer := "ref-user"
	registered := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	gomock.InOrder(
		f.ledger.EXPECT().TryClaim(ctx, []string{"A", "B"}).Return(nil),
		f.evm.EXPECT().Dispatch(ctx, testEVMWallet, batch.Value).Return(evmResult(), nil).Times(1),
		f.payouts.EXPECT().MarkSettled(gomock.Any(), []string{"A", "B"}, "0xhash").Return(nil),
		f.evm.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(900), nil),
		f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, entry *domain.PayoutTxLog) error {
				assert.Equal(t, domain.ChainKindAccount, entry.Chain)
				assert.Equal(t, "0xhash", entry.TxHash)
				assert.Equal(t, evmResult().SignerAddress, entry.From)
				assert.Equal(t, testEVMWallet, entry.To)
				assert.Equal(t, evmResult().SignerAddress, entry.FromID)
				assert.Equal(t, "u1", entry.ToID)
				assert.Equal(t, "12", entry.Value)
				assert.Equal(t, uint64(900), entry.CurrentBlock)
				assert.Equal(t, uint64(17), entry.Counter)
				require.NotNil(t, entry.GasPrice)
				assert.Equal(t, "3000000000", *entry.GasPrice)
				assert.Nil(t, entry.Gas)
				require.NotNil(t, entry.RawSignedTx)
				assert.Equal(t, "0x0102", *entry.RawSignedTx)
				assert.Equal(t, []string{domain.DefaultRemark}, entry.Remarks)
				assert.Equal(t, []string{"A", "B"}, entry.PayoutIDs)
				return nil
			}),
		f.users.EXPECT().GetProfile(gomock.Any(), "u1").Return(&domain.UserProfile{ID: "u1", Referrer: &referrer, RegisteredAt: registered}, nil),
		f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, event any) error {
				e, ok := event.(*domain.PayoutEvent)
				require.True(t, ok)
				assert.Equal(t, domain.LogTypeEVMPayout, e.LogType)
				assert.Equal(t, "u1", e.ToUser)
				assert.Equal(t, testEVMWallet, e.ToWallet)
				assert.Equal(t, "12", e.LikeAmountUnitStr)
				assert.InDelta(t, 1.2e-17, e.LikeAmount, 1e-30)
				assert.Equal(t, domain.TxStatusPending, e.TxStatus)
				require.NotNil(t, e.TxNonce)
				assert.Equal(t, uint64(17), *e.TxNonce)
				assert.Nil(t, e.TxSequence)
				require.NotNil(t, e.ToReferrer)
				assert.Equal(t, referrer, *e.ToReferrer)
				require.NotNil(t, e.ToRegisterTime)
				assert.Equal(t, registered.UnixMilli(), *e.ToRegisterTime)
				assert.Equal(t, uint64(900), e.CurrentBlock)
				return nil
			}),
	)

	outcome, err := f.svc.Settle(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, outcome)
}

func TestSettle_SequenceBasedEventShape(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	batch := domain.NewSettlementBatch(testCosmosWallet, "u2")
	delegator := "delegator-1"
	remark := "weekly reward"
	p := payout("C", testCosmosWallet, "u2", "2000000000000000000")
	p.DelegatorAccount = &delegator
	p.Remarks = &remark
	batch.Add(p, decimal.RequireFromString("2000000000000000000"))

	f.ledger.EXPECT().TryClaim(ctx, []string{"C"}).Return(nil)
	f.cosmos.EXPECT().Dispatch(ctx, testCosmosWallet, batch.Value).Return(&domain.DispatchResult{
		Chain:         domain.ChainKindSequence,
		TxHash:        "ABCDEF",
		Counter:       4,
		Gas:           90000,
		SignerAddress: "cosmos1signer",
		SentAmount:    decimal.NewFromInt(2_000_000_000),
	}, nil)
	f.payouts.EXPECT().MarkSettled(gomock.Any(), []string{"C"}, "ABCDEF").Return(nil)
	f.cosmos.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(55), nil)
	f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.PayoutTxLog) error {
			assert.Equal(t, domain.ChainKindSequence, entry.Chain)
			assert.Equal(t, "delegator-1", entry.FromID)
			assert.Equal(t, "cosmos1signer", entry.DelegatorAddress)
			require.NotNil(t, entry.Gas)
			assert.Equal(t, uint64(90000), *entry.Gas)
			assert.Nil(t, entry.GasPrice)
			assert.Nil(t, entry.RawSignedTx)
			assert.Equal(t, []string{"weekly reward"}, entry.Remarks)
			return nil
		})
	f.users.EXPECT().GetProfile(gomock.Any(), "u2").Return(nil, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, event any) error {
			e := event.(*domain.PayoutEvent)
			assert.Equal(t, domain.LogTypeCosmosPayout, e.LogType)
			assert.Equal(t, "delegator-1", e.FromUser)
			assert.Equal(t, "cosmos1signer", e.FromWallet)
			assert.Equal(t, 2.0, e.LikeAmount)
			require.NotNil(t, e.TxSequence)
			assert.Equal(t, uint64(4), *e.TxSequence)
			require.NotNil(t, e.Gas)
			assert.Nil(t, e.TxNonce)
			assert.Nil(t, e.GasPrice)
			assert.Nil(t, e.ToReferrer)
			assert.Nil(t, e.ToRegisterTime)
			return nil
		})

	outcome, err := f.svc.Settle(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, outcome)
}

func TestSettle_ClaimConflictAbandonsBatch(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, []string{"A", "B"}).Return(apperror.ErrAlreadyClaimed())

	outcome, err := f.svc.Settle(ctx, evmBatch())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeClaimConflict, outcome)
}

func TestSettle_ClaimError(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, gomock.Any()).Return(apperror.ErrDatabaseError(errors.New("conn refused")))

	outcome, err := f.svc.Settle(ctx, evmBatch())
	assert.Error(t, err)
	assert.Equal(t, domain.OutcomeClaimFailed, outcome)
}

func TestSettle_UnsupportedWalletIsNotClaimed(t *testing.T) {
	f := newSettlementFixture(t)

	batch := domain.NewSettlementBatch("bc1notsupported", "u1")
	batch.Add(payout("A", "bc1notsupported", "u1", "1"), decimal.NewFromInt(1))

	outcome, err := f.svc.Settle(context.Background(), batch)
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedWallet))
	assert.Equal(t, domain.OutcomeUnsupported, outcome)
}

func TestSettle_DispatchFailureStopsBatch(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, gomock.Any()).Return(nil)
	f.evm.EXPECT().Dispatch(ctx, gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDispatchFailed(errors.New("rpc down")))

	outcome, err := f.svc.Settle(ctx, evmBatch())
	assert.True(t, apperror.Is(err, apperror.CodeDispatchFailed))
	assert.Equal(t, domain.OutcomeDispatchFailed, outcome)
}

func TestSettle_MarkSettledRetriesSameHash(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, gomock.Any()).Return(nil)
	f.evm.EXPECT().Dispatch(ctx, gomock.Any(), gomock.Any()).Return(evmResult(), nil).Times(1)
	gomock.InOrder(
		f.payouts.EXPECT().MarkSettled(gomock.Any(), []string{"A", "B"}, "0xhash").Return(errors.New("deadlock detected")),
		f.payouts.EXPECT().MarkSettled(gomock.Any(), []string{"A", "B"}, "0xhash").Return(nil),
	)
	f.evm.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(1), nil)
	f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).Return(nil)
	f.users.EXPECT().GetProfile(gomock.Any(), "u1").Return(nil, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).Return(nil)

	outcome, err := f.svc.Settle(ctx, evmBatch())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, outcome)
}

func TestSettle_MarkSettledExhaustedIsDegraded(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, gomock.Any()).Return(nil)
	f.evm.EXPECT().Dispatch(ctx, gomock.Any(), gomock.Any()).Return(evmResult(), nil).Times(1)
	f.payouts.EXPECT().MarkSettled(gomock.Any(), gomock.Any(), "0xhash").Return(errors.New("db down")).Times(3)
	f.evm.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(1), nil)
	f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).Return(nil)
	f.users.EXPECT().GetProfile(gomock.Any(), "u1").Return(nil, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).Return(nil)

	outcome, err := f.svc.Settle(ctx, evmBatch())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettledDegraded, outcome)
}

func TestSettle_DownstreamFailuresAreDegradedNotRetried(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.ledger.EXPECT().TryClaim(ctx, gomock.Any()).Return(nil)
	f.evm.EXPECT().Dispatch(ctx, gomock.Any(), gomock.Any()).Return(evmResult(), nil).Times(1)
	f.payouts.EXPECT().MarkSettled(gomock.Any(), gomock.Any(), "0xhash").Return(nil)
	f.evm.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(0), apperror.ErrHeightUnavailable(errors.New("timeout")))
	f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).Return(errors.New("audit sink down"))
	f.users.EXPECT().GetProfile(gomock.Any(), "u1").Return(nil, errors.New("profile store down"))
	f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).Return(apperror.ErrPublishFailure(errors.New("redis down")))

	outcome, err := f.svc.Settle(ctx, evmBatch())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettledDegraded, outcome)
}

func TestSettle_BookkeepingSurvivesShutdown(t *testing.T) {
	f := newSettlementFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := func(ctx context.Context) {
		assert.NoError(t, ctx.Err(), "bookkeeping must not inherit the cancelled poll context")
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	}

	f.ledger.EXPECT().TryClaim(ctx, []string{"A", "B"}).Return(nil)
	f.evm.EXPECT().Dispatch(ctx, testEVMWallet, gomock.Any()).DoAndReturn(
		func(context.Context, string, decimal.Decimal) (*domain.DispatchResult, error) {
			cancel()
			return evmResult(), nil
		})
	f.payouts.EXPECT().MarkSettled(gomock.Any(), []string{"A", "B"}, "0xhash").DoAndReturn(
		func(ctx context.Context, _ []string, _ string) error {
			live(ctx)
			return ctx.Err()
		})
	f.evm.EXPECT().CurrentHeight(gomock.Any()).DoAndReturn(func(ctx context.Context) (uint64, error) {
		live(ctx)
		return 10, ctx.Err()
	})
	f.audit.EXPECT().LogPayoutTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.PayoutTxLog) error {
			live(ctx)
			assert.Equal(t, "0xhash", entry.TxHash)
			return ctx.Err()
		})
	f.users.EXPECT().GetProfile(gomock.Any(), "u1").DoAndReturn(
		func(ctx context.Context, _ string) (*domain.UserProfile, error) {
			live(ctx)
			return nil, ctx.Err()
		})
	f.publisher.EXPECT().Publish(gomock.Any(), "misc", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ any) error {
			live(ctx)
			return ctx.Err()
		})

	outcome, err := f.svc.Settle(ctx, evmBatch())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSettled, outcome)
}
