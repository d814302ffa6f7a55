package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Save inserts a new payment or updates an existing one. Updates are
	// rejected with ErrOptimisticLockFailed when the stored version moved on.
	Save(ctx context.Context, p *Payment) error

	// FindByID returns ErrPaymentNotFound when no row matches.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate loads a payment the caller intends to change within
	// the current transaction, locking it against concurrent writers.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindLatestByInvoiceID returns the most recent attempt for an invoice, or
	// nil when the invoice has none.
	FindLatestByInvoiceID(ctx context.Context, invoiceID InvoiceID) (*Payment, error)

	// FindAllByInvoiceID lists every attempt for an invoice, oldest first.
	FindAllByInvoiceID(ctx context.Context, invoiceID InvoiceID) ([]*Payment, error)

	ExistsByInvoiceID(ctx context.Context, invoiceID InvoiceID) (bool, error)
	CountByInvoiceID(ctx context.Context, invoiceID InvoiceID) (int, error)
	ExistsByInvoiceIDAndStatusIn(ctx context.Context, invoiceID InvoiceID, statuses ...Status) (bool, error)
}
