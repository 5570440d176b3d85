package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/platform/db"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Client, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Client, int, error)
	Create(ctx context.Context, c Client) (int64, error)
	Update(ctx context.Context, c Client) error
}

type repository struct {
	db db.DBTX
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const clientColumns = `id, company_name, contact_person, email, phone, address, tax_id,
	payment_terms_days, credit_limit, tier, sales_rep_id, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var tier string
	err := row.Scan(&c.ID, &c.CompanyName, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.TaxID,
		&c.PaymentTermsDays, &c.CreditLimit, &tier, &c.SalesRepID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Tier = catalog.Tier(tier)
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFound("client", id)
		}
		return nil, err
	}
	return c, nil
}

func (r *repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE lower(email) = lower($1) AND id <> $2)`,
		email, excludeID).Scan(&taken)
	return taken, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Client, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR email ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+search+"%")
		argPos++
	}
	if filter.SalesRepID != nil {
		conditions = append(conditions, fmt.Sprintf("sales_rep_id = $%d", argPos))
		args = append(args, *filter.SalesRepID)
		argPos++
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("id = $%d", argPos))
		args = append(args, *filter.ClientID)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM clients "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM clients %s ORDER BY company_name, id LIMIT $%d OFFSET $%d",
		clientColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Client) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO clients (company_name, contact_person, email, phone, address, tax_id,
			payment_terms_days, credit_limit, tier, sales_rep_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.CompanyName, c.ContactPerson, c.Email, c.Phone, c.Address, c.TaxID,
		c.PaymentTermsDays, c.CreditLimit, string(c.Tier), c.SalesRepID, c.IsActive,
	).Scan(&id)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return 0, shared.Conflict("email", "email %s already registered", c.Email)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, c Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clients SET company_name = $2, contact_person = $3, email = $4, phone = $5, address = $6,
			tax_id = $7, payment_terms_days = $8, credit_limit = $9, tier = $10, sales_rep_id = $11,
			is_active = $12, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.CompanyName, c.ContactPerson, c.Email, c.Phone, c.Address,
		c.TaxID, c.PaymentTermsDays, c.CreditLimit, string(c.Tier), c.SalesRepID, c.IsActive,
	)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return shared.Conflict("email", "email %s already registered", c.Email)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("client", c.ID)
	}
	return nil
}
