package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/platform/db"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
	ReplacePrices(ctx context.Context, productID int64, prices TierPrices) error
	ReplaceComponents(ctx context.Context, parentID int64, components []Component) error
	IsComponent(ctx context.Context, productID int64) (bool, error)
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

const productColumns = `p.id, p.sku, p.name, p.description, p.category, p.unit, p.min_order_qty,
	p.package_length, p.package_width, p.package_height, p.package_weight,
	p.is_active, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var length, width, height, weight decimal.NullDecimal
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Unit, &p.MinOrderQty,
		&length, &width, &height, &weight,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PackageLength = nullDecimalPtr(length)
	p.PackageWidth = nullDecimalPtr(width)
	p.PackageHeight = nullDecimalPtr(height)
	p.PackageWeight = nullDecimalPtr(weight)
	p.TierPrices = TierPrices{}
	return &p, nil
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFound("product", id)
		}
		return nil, err
	}
	if err := r.attach(ctx, map[int64]*Product{p.ID: p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.sku = $1`, sku))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFound("product", sku)
		}
		return nil, err
	}
	if err := r.attach(ctx, map[int64]*Product{p.ID: p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	out := make(map[int64]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attach(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.sku ILIKE $%d OR p.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+search+"%")
		argPos++
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", argPos))
		args = append(args, category)
		argPos++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "p.is_active")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products p "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products p %s ORDER BY p.sku LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Page.Limit(), filter.Page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ordered []*Product
	byID := make(map[int64]*Product)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		ordered = append(ordered, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attach(ctx, byID); err != nil {
		return nil, 0, err
	}

	products := make([]Product, 0, len(ordered))
	for _, p := range ordered {
		products = append(products, *p)
	}
	return products, total, nil
}

// attach loads tier prices and components for the given products.
func (r *repository) attach(ctx context.Context, products map[int64]*Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}

	rows, err := r.db.Query(ctx, `SELECT product_id, tier, price FROM product_tier_prices WHERE product_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var productID int64
		var tier string
		var price decimal.Decimal
		if err := rows.Scan(&productID, &tier, &price); err != nil {
			rows.Close()
			return err
		}
		if p, ok := products[productID]; ok {
			p.TierPrices[Tier(tier)] = price
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT pc.parent_id, pc.child_id, c.sku, pc.quantity
		FROM product_components pc
		JOIN products c ON c.id = pc.child_id
		WHERE pc.parent_id = ANY($1)
		ORDER BY pc.parent_id, pc.position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var parentID int64
		var comp Component
		if err := rows.Scan(&parentID, &comp.ProductID, &comp.SKU, &comp.Quantity); err != nil {
			return err
		}
		if p, ok := products[parentID]; ok {
			p.Components = append(p.Components, comp)
		}
	}
	return rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, category, unit, min_order_qty,
			package_length, package_width, package_height, package_weight, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		p.SKU, p.Name, p.Description, p.Category, p.Unit, p.MinOrderQty,
		p.PackageLength, p.PackageWidth, p.PackageHeight, p.PackageWeight, p.IsActive,
	).Scan(&id)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return 0, shared.Conflict("sku", "sku %s already in use", p.SKU)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, p Product) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET name = $2, description = $3, category = $4, unit = $5, min_order_qty = $6,
			package_length = $7, package_width = $8, package_height = $9, package_weight = $10,
			is_active = $11, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Category, p.Unit, p.MinOrderQty,
		p.PackageLength, p.PackageWidth, p.PackageHeight, p.PackageWeight, p.IsActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("product", p.ID)
	}
	return nil
}

func (r *repository) ReplacePrices(ctx context.Context, productID int64, prices TierPrices) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_tier_prices WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, tier := range Tiers() {
		price, ok := prices[tier]
		if !ok {
			continue
		}
		if _, err := r.db.Exec(ctx,
			`INSERT INTO product_tier_prices (product_id, tier, price) VALUES ($1, $2, $3)`,
			productID, string(tier), price); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ReplaceComponents(ctx context.Context, parentID int64, components []Component) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_components WHERE parent_id = $1`, parentID); err != nil {
		return err
	}
	for i, comp := range components {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO product_components (parent_id, child_id, quantity, position) VALUES ($1, $2, $3, $4)`,
			parentID, comp.ProductID, comp.Quantity, i+1); err != nil {
			if _, ok := db.IsUniqueViolation(err); ok {
				return shared.Validation("components", "product %d listed twice", comp.ProductID)
			}
			return err
		}
	}
	return nil
}

func (r *repository) IsComponent(ctx context.Context, productID int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product_components WHERE child_id = $1)`, productID).Scan(&used)
	return used, err
}
