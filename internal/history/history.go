// Package history implements the order_history store (spec.md §3's History
// record, §6's persisted-state table, §4.4's access pattern): create on
// intake, append-only status transitions, routing-decision capture, and
// cursor pagination by updatedAt descending. Store is a narrow interface so
// PostgresStore (pgxpool-backed) and MemStore (test fake) are
// interchangeable, the way solana-token-lab's cmd/server wires either a
// postgres- or memory-backed storage.CandidateStore behind one interface.
package history

import (
	"context"
	"time"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

// maxStatusHistoryEntries bounds status_history growth per row (spec.md
// supplemented retention policy; see SPEC_FULL.md).
const maxStatusHistoryEntries = 256

// Record is one order_history row.
type Record struct {
	OrderID         string                     `json:"orderId"`
	OrderType       order.Type                 `json:"orderType"`
	TokenIn         string                     `json:"tokenIn"`
	TokenOut        string                     `json:"tokenOut"`
	Amount          uint64                     `json:"amount"`
	Status          order.Status               `json:"status"`
	Venue           string                     `json:"venue,omitempty"`
	TxHash          string                     `json:"txHash,omitempty"`
	ExecutedAmount  uint64                     `json:"executedAmount,omitempty"`
	QuoteResponse   *order.QuoteResponse       `json:"quoteResponse,omitempty"`
	StatusHistory   []order.StatusHistoryEntry `json:"statusHistory"`
	LastError       string                     `json:"lastError,omitempty"`
	ExplorerLink    string                     `json:"explorerLink,omitempty"`
	ReceivedAt      time.Time                  `json:"receivedAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// Page is one page of history results (spec.md §6's GET /api/orders/history
// response shape).
type Page struct {
	Data        []Record
	NextCursor  *time.Time
	HasMore     bool
}

// ListOptions bounds and positions a history query.
type ListOptions struct {
	Limit  int
	Cursor *time.Time
}

// ClampLimit enforces spec.md §6's [1,200] bound, default 50.
func (o ListOptions) ClampLimit() int {
	switch {
	case o.Limit <= 0:
		return 50
	case o.Limit > 200:
		return 200
	default:
		return o.Limit
	}
}

// Store is the history collaborator's capability surface.
type Store interface {
	// Create inserts the initial row for a newly accepted order.
	Create(ctx context.Context, job *order.Job, detail string) error
	// AppendStatus appends a lifecycle transition and advances Status/UpdatedAt.
	AppendStatus(ctx context.Context, orderID string, entry order.StatusHistoryEntry) error
	// RecordRoutingDecision stores the winning venue and quote for an order.
	RecordRoutingDecision(ctx context.Context, orderID, venue string, quote order.QuoteResponse) error
	// RecordSubmission stores the chain signature and explorer link.
	RecordSubmission(ctx context.Context, orderID, txHash, explorerLink string) error
	// RecordConfirmation stores the final executed amount on success.
	RecordConfirmation(ctx context.Context, orderID string, executedAmount uint64) error
	// RecordFailure stores the last error message on failure.
	RecordFailure(ctx context.Context, orderID, lastError string) error
	// Get fetches a single record by order ID.
	Get(ctx context.Context, orderID string) (Record, bool, error)
	// List returns a cursor-paginated, updatedAt-descending page of records.
	List(ctx context.Context, opts ListOptions) (Page, error)
	// Close releases the store's resources.
	Close()
}

// appendCapped appends entry to history, dropping the oldest entries first
// once the retention cap is exceeded.
func appendCapped(history []order.StatusHistoryEntry, entry order.StatusHistoryEntry) []order.StatusHistoryEntry {
	history = append(history, entry)
	if len(history) > maxStatusHistoryEntries {
		history = history[len(history)-maxStatusHistoryEntries:]
	}
	return history
}
