package quotations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tierquote/internal/platform/db"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	NextNumber(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	// Transition moves id from one status to another only if it is still in
	// from and, when notExpiredAsOf is set, still valid on that date.
	Transition(ctx context.Context, id int64, from, to Status, notExpiredAsOf *time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quotationColumns = `q.id, q.quotation_number, q.client_id, q.status, q.currency, q.valid_until,
	q.notes, q.total_amount, q.created_by, q.created_at, q.updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var status string
	err := row.Scan(&q.ID, &q.Number, &q.ClientID, &status, &q.Currency, &q.ValidUntil,
		&q.Notes, &q.TotalAmount, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Status = Status(status)
	q.ValidUntil = DateOf(q.ValidUntil)
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations q WHERE q.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFound("quotation", id)
		}
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT position, product_id, sku, name, quantity, unit_price, discount_percent, line_total, notes
		FROM quotation_items WHERE quotation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Position, &it.ProductID, &it.SKU, &it.Name, &it.Quantity,
			&it.UnitPrice, &it.DiscountPercent, &it.LineTotal, &it.Notes); err != nil {
			return nil, err
		}
		q.Items = append(q.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

// effectiveStatusSQL mirrors Quotation.EffectiveStatus; %d is the as-of date placeholder.
const effectiveStatusSQL = `CASE WHEN q.status IN ('draft', 'sent') AND q.valid_until < $%d::date THEN 'expired' ELSE q.status END`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.Status != nil {
		asOf := filter.AsOf
		if asOf.IsZero() {
			asOf = DateOf(time.Now())
		}
		conditions = append(conditions, fmt.Sprintf(effectiveStatusSQL+" = $%d", argPos, argPos+1))
		args = append(args, asOf, string(*filter.Status))
		argPos += 2
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("q.client_id = $%d", argPos))
		args = append(args, *filter.ClientID)
		argPos++
	}
	if filter.ScopeClientID != nil {
		conditions = append(conditions, fmt.Sprintf("q.client_id = $%d", argPos))
		args = append(args, *filter.ScopeClientID)
		argPos++
	}
	if filter.ScopeSalesRepID != nil {
		conditions = append(conditions, fmt.Sprintf("(c.sales_rep_id = $%d OR q.created_by = $%d)", argPos, argPos))
		args = append(args, *filter.ScopeSalesRepID)
		argPos++
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	from := "FROM quotations q JOIN clients c ON c.id = q.client_id"

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+from+" "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s %s %s ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d",
		quotationColumns, from, whereClause, argPos, argPos+1)
	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

// NextNumber issues QT-YYYY-NNNN from the per-year sequence row.
func (r *repository) NextNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "QT", fmt.Sprintf("%04d", year)).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("QT-%04d-%04d", year, seq), nil
}

func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotations (quotation_number, client_id, status, currency, valid_until, notes, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		q.Number, q.ClientID, string(q.Status), q.Currency, q.ValidUntil, q.Notes, q.TotalAmount, q.CreatedBy,
	).Scan(&id)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return 0, shared.Conflict("quotation_number", "quotation number %s already issued", q.Number)
		}
		if db.IsForeignKeyViolation(err) {
			return 0, shared.NotFound("client", q.ClientID)
		}
		return 0, err
	}
	for _, it := range q.Items {
		_, err := r.db.Exec(ctx, `
			INSERT INTO quotation_items (quotation_id, position, product_id, sku, name, quantity,
				unit_price, discount_percent, line_total, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, it.Position, it.ProductID, it.SKU, it.Name, it.Quantity,
			it.UnitPrice, it.DiscountPercent, it.LineTotal, it.Notes)
		if err != nil {
			return 0, fmt.Errorf("insert item %d: %w", it.Position, err)
		}
	}
	return id, nil
}

func (r *repository) Transition(ctx context.Context, id int64, from, to Status, notExpiredAsOf *time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND ($4::date IS NULL OR valid_until >= $4::date)`,
		id, string(from), string(to), notExpiredAsOf)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) ExpireOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE quotations SET status = 'expired', updated_at = NOW()
		WHERE status IN ('draft', 'sent') AND valid_until < $1::date
		RETURNING id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
