package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports/mocks"
	"payout-settler/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestStaleClaimMonitor_Scan(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockPayoutRepository(ctrl)
	mon := NewStaleClaimMonitor(repo, metrics.New(prometheus.NewRegistry()), 30*time.Minute, time.Minute, newTestLogger())
	mon.now = func() time.Time { return testNow }

	claimed := testNow.Add(-2 * time.Hour)
	pending := domain.SettlementPending
	stuck := payout("A", testEVMWallet, "u1", "5")
	stuck.TxHash = &pending
	stuck.ClaimedAt = &claimed

	repo.EXPECT().ListStaleClaims(gomock.Any(), testNow.Add(-30*time.Minute), staleScanLimit).
		Return([]domain.PendingPayout{stuck, payout("B", "", "u2", "1")}, nil)

	n, err := mon.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStaleClaimMonitor_Scan_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockPayoutRepository(ctrl)
	mon := NewStaleClaimMonitor(repo, nil, time.Minute, time.Minute, newTestLogger())

	repo.EXPECT().ListStaleClaims(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := mon.Scan(context.Background())
	assert.Error(t, err)
}

func TestStaleClaimMonitor_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockPayoutRepository(ctrl)
	mon := NewStaleClaimMonitor(repo, nil, time.Minute, time.Hour, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	repo.EXPECT().ListStaleClaims(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time, int) ([]domain.PendingPayout, error) {
			cancel()
			return nil, nil
		}).Times(1)

	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestNewStaleClaimMonitor_ClampsNonPositiveDurations(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		mon := NewStaleClaimMonitor(nil, nil, d, d, newTestLogger())
		assert.Equal(t, DefaultStaleClaimAfter, mon.after)
		assert.Equal(t, DefaultStaleScanInterval, mon.interval)
	}
}

func TestStaleClaimMonitor_Run_ZeroIntervalDoesNotPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockPayoutRepository(ctrl)
	mon := NewStaleClaimMonitor(repo, nil, 0, 0, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	repo.EXPECT().ListStaleClaims(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, time.Time, int) ([]domain.PendingPayout, error) {
			cancel()
			return nil, nil
		})

	assert.NotPanics(t, func() { mon.Run(ctx) })
}

func TestStaleClaimMonitor_Scan_WarnsOnEveryScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf bytes.Buffer
	repo := mocks.NewMockPayoutRepository(ctrl)
	mon := NewStaleClaimMonitor(repo, nil, time.Minute, time.Minute, zerolog.New(&buf))

	pending := domain.SettlementPending
	stuck := payout("A", testEVMWallet, "u1", "5")
	stuck.TxHash = &pending
	repo.EXPECT().ListStaleClaims(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]domain.PendingPayout{stuck}, nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := mon.Scan(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, strings.Count(buf.String(), `"payout_id":"A"`))
}
