package service

import (
	"strings"

	"payout-settler/internal/core/domain"
	"payout-settler/internal/core/ports"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// ClassifyWallet decides the chain variant from the address shape alone.
// It is total: any input maps to exactly one ChainKind.
func ClassifyWallet(addr, bech32Prefix string) domain.ChainKind {
	if strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr) {
		return domain.ChainKindAccount
	}
	if bech32Prefix == "" || !strings.HasPrefix(addr, bech32Prefix+"1") {
		return domain.ChainKindUnknown
	}
	hrp, bz, err := bech32.DecodeAndConvert(addr)
	if err != nil || hrp != bech32Prefix {
		return domain.ChainKindUnknown
	}
	// 20-byte user accounts, 32-byte module/contract accounts
	if len(bz) != 20 && len(bz) != 32 {
		return domain.ChainKindUnknown
	}
	return domain.ChainKindSequence
}

// ChainSelector maps wallet addresses to the dispatcher of their chain.
type ChainSelector struct {
	bech32Prefix string
	dispatchers  map[domain.ChainKind]ports.ChainDispatcher
}

// NewChainSelector creates a selector over the given dispatchers. A nil
// dispatcher disables its variant.
func NewChainSelector(bech32Prefix string, dispatchers ...ports.ChainDispatcher) *ChainSelector {
	s := &ChainSelector{
		bech32Prefix: bech32Prefix,
		dispatchers:  make(map[domain.ChainKind]ports.ChainDispatcher, len(dispatchers)),
	}
	for _, d := range dispatchers {
		if d != nil {
			s.dispatchers[d.Kind()] = d
		}
	}
	return s
}

// Classify returns the chain kind of wallet.
func (s *ChainSelector) Classify(wallet string) domain.ChainKind {
	return ClassifyWallet(wallet, s.bech32Prefix)
}

// Select returns the dispatcher for wallet, or false when no configured
// variant can pay it.
func (s *ChainSelector) Select(wallet string) (ports.ChainDispatcher, bool) {
	d, ok := s.dispatchers[s.Classify(wallet)]
	return d, ok
}
