package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"payout-settler/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTxLog() *domain.PayoutTxLog {
	gas := uint64(81000)
	return &domain.PayoutTxLog{
		ID:               uuid.New(),
		Chain:            domain.ChainKindSequence,
		TxHash:           "ABCDEF",
		From:             "cosmos1signer",
		To:               "cosmos1receiver",
		FromID:           "delegator",
		ToID:             "u1",
		Value:            "2000000000000000000",
		CurrentBlock:     1200,
		Counter:          3,
		Gas:              &gas,
		DelegatorAddress: "cosmos1signer",
		Remarks:          []string{"Bonus"},
		PayoutIDs:        []string{"A"},
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPayoutLogRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutLogRepo(mock)
	e := newTestTxLog()
	gas := int64(81000)
	var noStr *string

	mock.ExpectExec("INSERT INTO payout_tx_logs").
		WithArgs(e.ID, "SEQUENCE", e.TxHash, e.From, e.To, e.FromID, e.ToID,
			e.Value, int64(1200), int64(3), noStr, &gas, noStr, e.DelegatorAddress,
			[]byte(`["Bonus"]`), []byte(`["A"]`), e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayoutLogRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPayoutLogRepo(mock)

	mock.ExpectExec("INSERT INTO payout_tx_logs").
		WillReturnError(errors.New("disk full"))

	err = repo.Create(context.Background(), newTestTxLog())
	assert.ErrorContains(t, err, "insert payout tx log")
	assert.NoError(t, mock.ExpectationsWereMet())
}
