package service

import (
	"testing"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testEVMWallet    = "0x2222222222222222222222222222222222222222"
	testCosmosWallet = "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu"
)

func TestClassifyWallet(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want domain.ChainKind
	}{
		{"evm lower", testEVMWallet, domain.ChainKindAccount},
		{"evm checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", domain.ChainKindAccount},
		{"evm without prefix", "2222222222222222222222222222222222222222", domain.ChainKindUnknown},
		{"evm too short", "0x2222", domain.ChainKindUnknown},
		{"cosmos account", testCosmosWallet, domain.ChainKindSequence},
		{"cosmos module account", "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5z5tpwxqergd3c8g7rusqqlvp8l", domain.ChainKindSequence},
		{"cosmos bad checksum", "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xa", domain.ChainKindUnknown},
		{"cosmos 10 bytes", "cosmos1qypqxpq9qcrsszg2789qmz", domain.ChainKindUnknown},
		{"other prefix", "like1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5v7su98", domain.ChainKindUnknown},
		{"empty", "", domain.ChainKindUnknown},
		{"garbage", "not a wallet", domain.ChainKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyWallet(tt.addr, "cosmos"))
		})
	}
}

func TestClassifyWallet_CustomPrefix(t *testing.T) {
	assert.Equal(t, domain.ChainKindSequence, ClassifyWallet("like1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5v7su98", "like"))
	assert.Equal(t, domain.ChainKindUnknown, ClassifyWallet(testCosmosWallet, "like"))
	assert.Equal(t, domain.ChainKindUnknown, ClassifyWallet(testCosmosWallet, ""))
}

func TestChainSelector_Select(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	evm := mocks.NewMockChainDispatcher(ctrl)
	evm.EXPECT().Kind().Return(domain.ChainKindAccount).AnyTimes()

	selector := NewChainSelector("cosmos", evm, nil)

	d, ok := selector.Select(testEVMWallet)
	require.True(t, ok)
	assert.Same(t, evm, d)

	_, ok = selector.Select(testCosmosWallet)
	assert.False(t, ok, "sequence variant not configured")

	_, ok = selector.Select("garbage")
	assert.False(t, ok)
}
