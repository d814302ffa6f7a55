package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/invoicepay/internal/domain/errors"
	"github.com/cassiomorais/invoicepay/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation    = "23505"
	activeInvoiceIndex = "uq_payments_active_invoice"
)

const paymentColumns = `id, invoice_id, payment_method_id,
	requested_amount::text, authorized_amount::text, captured_amount::text, currency,
	status, gateway_reference_id, failure_reason,
	created_at, authorized_at, captured_at, expires_at, updated_at, version`

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) Querier {
	return querier(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Save inserts a payment at version 0 and otherwise updates it guarded by
// its version. The aggregate's version is bumped on success.
func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	s := p.Snapshot()
	if s.Version == 0 {
		return r.insert(ctx, p, s)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  payment_method_id=$1, authorized_amount=$2, captured_amount=$3,
		  status=$4, gateway_reference_id=$5, failure_reason=$6,
		  authorized_at=$7, captured_at=$8, expires_at=$9, updated_at=$10,
		  version=version+1
		 WHERE id=$11 AND version=$12`,
		nullString(s.PaymentMethodID.String()), s.AuthorizedAmount.StringFixed(), s.CapturedAmount.StringFixed(),
		string(s.Status), nullString(s.GatewayReferenceID), nullString(s.FailureReason),
		s.AuthorizedAt, s.CapturedAt, s.ExpiresAt, s.UpdatedAt,
		s.ID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.NewDomainError("version_conflict",
			fmt.Sprintf("payment %s was modified concurrently (version %d)", s.ID, s.Version),
			domainErrors.ErrOptimisticLockFailed)
	}
	p.SyncVersion(s.Version + 1)
	return nil
}

func (r *PaymentRepository) insert(ctx context.Context, p *payment.Payment, s payment.Snapshot) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payments
		 (id, invoice_id, payment_method_id, requested_amount, authorized_amount, captured_amount, currency,
		  status, gateway_reference_id, failure_reason,
		  created_at, authorized_at, captured_at, expires_at, updated_at, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)`,
		s.ID, s.InvoiceID.String(), nullString(s.PaymentMethodID.String()),
		s.RequestedAmount.StringFixed(), s.AuthorizedAmount.StringFixed(), s.CapturedAmount.StringFixed(), s.RequestedAmount.Currency(),
		string(s.Status), nullString(s.GatewayReferenceID), nullString(s.FailureReason),
		s.CreatedAt, s.AuthorizedAt, s.CapturedAt, s.ExpiresAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == activeInvoiceIndex {
				return domainErrors.NewDomainError("duplicate_payment",
					"invoice "+s.InvoiceID.String()+" already has an active payment", domainErrors.ErrDuplicatePayment)
			}
			return domainErrors.NewDomainError("version_conflict",
				"payment "+s.ID.String()+" already exists", domainErrors.ErrOptimisticLockFailed)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	p.SyncVersion(1)
	return nil
}

// FindByID retrieves a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.NewDomainError("payment_not_found", "payment "+id.String()+" not found", domainErrors.ErrPaymentNotFound)
	}
	return p, err
}

// FindByIDForUpdate is FindByID holding a row lock until the surrounding
// transaction ends. Outside a transaction it behaves like FindByID.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if !inTx(ctx) {
		return r.FindByID(ctx, id)
	}
	p, err := r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.NewDomainError("payment_not_found", "payment "+id.String()+" not found", domainErrors.ErrPaymentNotFound)
	}
	return p, err
}

// FindLatestByInvoiceID returns nil when the invoice has no payments.
func (r *PaymentRepository) FindLatestByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (*payment.Payment, error) {
	p, err := r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT 1`, invoiceID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// FindAllByInvoiceID lists attempts oldest first.
func (r *PaymentRepository) FindAllByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) ([]*payment.Payment, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1
		 ORDER BY created_at ASC, id ASC`, invoiceID.String())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) ExistsByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE invoice_id = $1)`, invoiceID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payments: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepository) CountByInvoiceID(ctx context.Context, invoiceID payment.InvoiceID) (int, error) {
	var n int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE invoice_id = $1`, invoiceID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}

func (r *PaymentRepository) ExistsByInvoiceIDAndStatusIn(ctx context.Context, invoiceID payment.InvoiceID, statuses ...payment.Status) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE invoice_id = $1 AND status = ANY($2))`,
		invoiceID.String(), names).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payments by status: %w", err)
	}
	return exists, nil
}

// --- scanning helpers ---

// scanPayment scans a payment from any source implementing the scanner
// interface. pgx.ErrNoRows is returned unwrapped.
func (r *PaymentRepository) scanPayment(s scanner) (*payment.Payment, error) {
	var (
		snap                               payment.Snapshot
		invoiceID, currency, status        string
		methodID, gatewayRef, reason       *string
		requested, authorized, capturedStr string
	)
	err := s.Scan(
		&snap.ID, &invoiceID, &methodID,
		&requested, &authorized, &capturedStr, &currency,
		&status, &gatewayRef, &reason,
		&snap.CreatedAt, &snap.AuthorizedAt, &snap.CapturedAt, &snap.ExpiresAt, &snap.UpdatedAt, &snap.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if snap.RequestedAmount, err = parseMoney(requested, currency); err != nil {
		return nil, fmt.Errorf("parse requested amount: %w", err)
	}
	if snap.AuthorizedAmount, err = parseMoney(authorized, currency); err != nil {
		return nil, fmt.Errorf("parse authorized amount: %w", err)
	}
	if snap.CapturedAmount, err = parseMoney(capturedStr, currency); err != nil {
		return nil, fmt.Errorf("parse captured amount: %w", err)
	}

	snap.InvoiceID = payment.InvoiceID(invoiceID)
	snap.PaymentMethodID = payment.PaymentMethodID(deref(methodID))
	snap.Status = payment.Status(status)
	snap.GatewayReferenceID = deref(gatewayRef)
	snap.FailureReason = deref(reason)
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.UpdatedAt = snap.UpdatedAt.UTC()
	snap.AuthorizedAt = utcPtr(snap.AuthorizedAt)
	snap.CapturedAt = utcPtr(snap.CapturedAt)
	snap.ExpiresAt = utcPtr(snap.ExpiresAt)

	p, err := payment.Reconstitute(snap)
	if err != nil {
		return nil, fmt.Errorf("reconstitute payment %s: %w", snap.ID, err)
	}
	return p, nil
}
