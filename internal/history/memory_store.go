package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// MemStore is an in-process Store used by tests and local smoke runs that
// don't have a Postgres instance handy.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemStore) Create(ctx context.Context, job *order.Job, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.records[job.OrderID] = Record{
		OrderID:    job.OrderID,
		OrderType:  job.Type,
		TokenIn:    job.TokenIn,
		TokenOut:   job.TokenOut,
		Amount:     job.Amount,
		Status:     order.StatusPending,
		ReceivedAt: job.ReceivedAt,
		UpdatedAt:  now,
		StatusHistory: []order.StatusHistoryEntry{
			{Status: order.StatusPending, Detail: detail, RecordedAt: now},
		},
	}
	return nil
}

func (s *MemStore) AppendStatus(ctx context.Context, orderID string, entry order.StatusHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	rec.Status = entry.Status
	rec.StatusHistory = appendCapped(rec.StatusHistory, entry)
	if entry.Link != "" {
		rec.ExplorerLink = entry.Link
	}
	rec.UpdatedAt = s.now()
	s.records[orderID] = rec
	return nil
}

func (s *MemStore) RecordRoutingDecision(ctx context.Context, orderID, venue string, quote order.QuoteResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	rec.Venue = venue
	q := quote
	rec.QuoteResponse = &q
	rec.UpdatedAt = s.now()
	s.records[orderID] = rec
	return nil
}

func (s *MemStore) RecordSubmission(ctx context.Context, orderID, txHash, explorerLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	rec.TxHash = txHash
	rec.ExplorerLink = explorerLink
	rec.UpdatedAt = s.now()
	s.records[orderID] = rec
	return nil
}

func (s *MemStore) RecordConfirmation(ctx context.Context, orderID string, executedAmount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	rec.ExecutedAmount = executedAmount
	rec.UpdatedAt = s.now()
	s.records[orderID] = rec
	return nil
}

func (s *MemStore) RecordFailure(ctx context.Context, orderID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[orderID]
	if !ok {
		return apperrors.Newf(apperrors.KindInternal, "history: unknown order %s", orderID)
	}
	rec.LastError = lastError
	rec.UpdatedAt = s.now()
	s.records[orderID] = rec
	return nil
}

func (s *MemStore) Get(ctx context.Context, orderID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[orderID]
	return rec, ok, nil
}

func (s *MemStore) List(ctx context.Context, opts ListOptions) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.ClampLimit()
	all := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Cursor != nil && !rec.UpdatedAt.Before(*opts.Cursor) {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}

	var next *time.Time
	if hasMore && len(all) > 0 {
		cursor := all[len(all)-1].UpdatedAt
		next = &cursor
	}

	return Page{Data: all, NextCursor: next, HasMore: hasMore}, nil
}

func (s *MemStore) Close() {}
