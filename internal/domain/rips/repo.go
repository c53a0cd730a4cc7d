package rips

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the read side the export needs. Implementations return
// invoices issued in [from, to) oldest first, each with its appointments and
// their procedures attached in order.
type Repository interface {
	ListInvoices(ctx context.Context, from, to time.Time) ([]*Invoice, error)
	// GetPatients returns the patients that exist among ids, trashed ones
	// included. Missing IDs are absent from the map, not an error.
	GetPatients(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error)
}
