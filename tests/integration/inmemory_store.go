package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payout-settler/internal/core/domain"
	"payout-settler/pkg/apperror"

	"github.com/shopspring/decimal"
)

// --- In-Memory Payout Store ---

// inMemoryStore implements the payout, claim, user and audit-log ports over a
// single mutex, mirroring the row locks of the PostgreSQL adapter.
type inMemoryStore struct {
	mu      sync.Mutex
	payouts map[string]*domain.PendingPayout
	order   []string
	users   map[string]*domain.UserProfile
	logs    []*domain.PayoutTxLog
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		payouts: make(map[string]*domain.PendingPayout),
		users:   make(map[string]*domain.UserProfile),
	}
}

// addPayouts inserts ps atomically, as a single INSERT would.
func (s *inMemoryStore) addPayouts(ps ...domain.PendingPayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ps {
		p := ps[i]
		s.payouts[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
}

func (s *inMemoryStore) addUser(u domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *inMemoryStore) payout(id string) domain.PendingPayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.payouts[id]
}

func (s *inMemoryStore) txLogs() []*domain.PayoutTxLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.PayoutTxLog(nil), s.logs...)
}

func (s *inMemoryStore) ListEligible(ctx context.Context, now time.Time, limit int) ([]domain.PendingPayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PendingPayout
	for _, id := range s.order {
		if p := s.payouts[id]; p.IsEligible(now) {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EffectiveAt.Before(out[j].EffectiveAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) MarkSettled(ctx context.Context, ids []string, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		p, ok := s.payouts[id]
		if !ok {
			return fmt.Errorf("payout %s not found", id)
		}
		if p.TxHash == nil || (*p.TxHash != domain.SettlementPending && *p.TxHash != txHash) {
			return fmt.Errorf("payout %s is not pending", id)
		}
		hash := txHash
		p.TxHash = &hash
	}
	return nil
}

func (s *inMemoryStore) ListStaleClaims(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.PendingPayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PendingPayout
	for _, id := range s.order {
		p := s.payouts[id]
		if p.State() == domain.SettlementStateClaimed && p.ClaimedAt != nil && p.ClaimedAt.Before(claimedBefore) {
			out = append(out, *p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) TryClaim(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		p, ok := s.payouts[id]
		if !ok {
			return apperror.ErrPayoutMissing(id)
		}
		if p.TxHash != nil {
			return apperror.ErrAlreadyClaimed()
		}
	}
	now := time.Now()
	for _, id := range ids {
		pending := domain.SettlementPending
		s.payouts[id].TxHash = &pending
		s.payouts[id].ClaimedAt = &now
	}
	return nil
}

func (s *inMemoryStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (s *inMemoryStore) Create(ctx context.Context, entry *domain.PayoutTxLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// --- In-Memory Chain ---

// inMemoryChain is a ledger backend that hands out one counter per broadcast.
type inMemoryChain struct {
	kind domain.ChainKind

	mu       sync.Mutex
	counter  uint64
	height   uint64
	received map[string][]decimal.Decimal
}

func newInMemoryChain(kind domain.ChainKind) *inMemoryChain {
	return &inMemoryChain{kind: kind, height: 100, received: make(map[string][]decimal.Decimal)}
}

func (c *inMemoryChain) Kind() domain.ChainKind { return c.kind }

func (c *inMemoryChain) Dispatch(ctx context.Context, wallet string, value decimal.Decimal) (*domain.DispatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.counter
	c.counter++
	c.height++
	c.received[wallet] = append(c.received[wallet], value)
	return &domain.DispatchResult{
		Chain:         c.kind,
		TxHash:        fmt.Sprintf("0x%s-%d", c.kind, n),
		Counter:       n,
		GasPrice:      "1000000000",
		Gas:           80000,
		SignerAddress: "pool-signer",
		SentAmount:    value,
	}, nil
}

func (c *inMemoryChain) CurrentHeight(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *inMemoryChain) receivedBy(wallet string) []decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]decimal.Decimal(nil), c.received[wallet]...)
}

func (c *inMemoryChain) dispatched() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// --- In-Memory Publisher ---

type inMemoryPublisher struct {
	mu     sync.Mutex
	events []*domain.PayoutEvent
}

func (p *inMemoryPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := event.(*domain.PayoutEvent); ok {
		p.events = append(p.events, e)
	}
	return nil
}

func (p *inMemoryPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
