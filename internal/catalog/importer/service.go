package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Catalog is the slice of the catalog service the importer drives.
type Catalog interface {
	GetBySKU(ctx context.Context, sku string) (*catalog.Product, error)
	Create(ctx context.Context, actor identity.Actor, req catalog.CreateProductRequest) (*catalog.Product, error)
	Update(ctx context.Context, actor identity.Actor, id int64, req catalog.UpdateProductRequest) (*catalog.Product, error)
	List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error)
}

// Warmer schedules a catalog cache warm after a successful import.
type Warmer interface {
	EnqueueCatalogWarm(ctx context.Context, batchID string) error
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"

	exportPageSize = 200
	exportFanOut   = 4
	maxImportRows  = 5000
)

// RowResult is the outcome of one spreadsheet line.
type RowResult struct {
	Line      int    `json:"line"`
	SKU       string `json:"sku,omitempty"`
	Action    string `json:"action"`
	ProductID int64  `json:"product_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report summarises an import batch.
type Report struct {
	BatchID   string      `json:"batch_id"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Rows      []RowResult `json:"rows"`
}

type Service struct {
	catalog Catalog
	pricer  catalog.Pricer
	warmer  Warmer
	logger  *slog.Logger
}

func NewService(cat Catalog, pricer catalog.Pricer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: cat, pricer: pricer, logger: logger}
}

// WithWarmer enables the post import cache warm.
func (s *Service) WithWarmer(w Warmer) *Service {
	s.warmer = w
	return s
}

// Import upserts rows in two passes. The first creates or updates every
// product, the second links bundle components, so a bundle may be listed
// before its components. Existing SKUs are updated in place.
func (s *Service) Import(ctx context.Context, actor identity.Actor, rows []Row) (*Report, error) {
	if !actor.Can().ManageCatalog {
		return nil, shared.Forbidden("role %s cannot import products", actor.Role)
	}
	if len(rows) > maxImportRows {
		return nil, shared.Validation("file", "at most %d rows per import, got %d", maxImportRows, len(rows))
	}
	report := &Report{BatchID: uuid.NewString(), Rows: make([]RowResult, 0, len(rows))}
	ids := make(map[string]int64, len(rows))
	var bundles []int

	for _, row := range rows {
		if row.Blank() {
			report.Rows = append(report.Rows, RowResult{Line: row.Line, Action: ActionSkipped})
			continue
		}
		result := RowResult{Line: row.Line, SKU: row.SKU}
		product, action, err := s.upsert(ctx, actor, row)
		if err != nil {
			result.Action = ActionFailed
			result.Error = err.Error()
		} else {
			result.Action = action
			result.ProductID = product.ID
			ids[product.SKU] = product.ID
			if row.Components != "" {
				bundles = append(bundles, len(report.Rows))
			}
		}
		report.Rows = append(report.Rows, result)
	}

	byLine := make(map[int]Row, len(rows))
	for _, row := range rows {
		byLine[row.Line] = row
	}
	for _, idx := range bundles {
		result := &report.Rows[idx]
		if err := s.link(ctx, actor, result.ProductID, byLine[result.Line], ids); err != nil {
			result.Action = ActionFailed
			result.Error = err.Error()
		}
	}

	for _, r := range report.Rows {
		switch r.Action {
		case ActionSkipped:
			report.Skipped++
		case ActionFailed:
			report.Failed++
		default:
			report.Succeeded++
		}
	}
	report.Total = len(report.Rows)

	s.logger.Info("catalog import finished",
		slog.String("batch_id", report.BatchID),
		slog.Int64("actor_id", actor.ID),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
	)
	if report.Succeeded > 0 && s.warmer != nil {
		if err := s.warmer.EnqueueCatalogWarm(ctx, report.BatchID); err != nil {
			s.logger.Warn("enqueue catalog warm", slog.String("batch_id", report.BatchID), slog.Any("error", err))
		}
	}
	return report, nil
}

func (s *Service) upsert(ctx context.Context, actor identity.Actor, row Row) (*catalog.Product, string, error) {
	f, err := row.coerce()
	if err != nil {
		return nil, "", err
	}
	existing, err := s.catalog.GetBySKU(ctx, row.SKU)
	switch {
	case err == nil:
		product, err := s.catalog.Update(ctx, actor, existing.ID, f.updateRequest(row))
		return product, ActionUpdated, err
	case shared.KindOf(err) == shared.KindNotFound:
		product, err := s.catalog.Create(ctx, actor, f.createRequest(row))
		return product, ActionCreated, err
	default:
		return nil, "", fmt.Errorf("look up sku %s: %w", row.SKU, err)
	}
}

func (s *Service) link(ctx context.Context, actor identity.Actor, productID int64, row Row, ids map[string]int64) error {
	refs, err := parseComponents(row.Components)
	if err != nil {
		return err
	}
	components := make([]catalog.ComponentRequest, 0, len(refs))
	for _, ref := range refs {
		childID, ok := ids[ref.SKU]
		if !ok {
			child, err := s.catalog.GetBySKU(ctx, ref.SKU)
			if err != nil {
				if shared.KindOf(err) == shared.KindNotFound {
					return shared.Validation(colComponents, "component sku %s not found", ref.SKU)
				}
				return err
			}
			childID = child.ID
			ids[ref.SKU] = childID
		}
		components = append(components, catalog.ComponentRequest{ProductID: childID, Quantity: ref.Quantity})
	}
	_, err = s.catalog.Update(ctx, actor, productID, catalog.UpdateProductRequest{Components: &components})
	return err
}

// ExportRecord is a product with the viewer's pricing.
type ExportRecord struct {
	Product catalog.Product
	Stamp   catalog.PriceStamp
}

// Export collects the catalog as the actor may see it. Client viewers get
// active products and their own price only.
func (s *Service) Export(ctx context.Context, actor identity.Actor) ([]ExportRecord, error) {
	filter := catalog.ListFilter{ActiveOnly: !actor.Privileged()}
	first, total, err := s.exportPage(ctx, actor, filter, 1)
	if err != nil {
		return nil, err
	}
	pages := (total + exportPageSize - 1) / exportPageSize
	if pages <= 1 {
		return first, nil
	}

	results := make([][]ExportRecord, pages)
	results[0] = first
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportFanOut)
	for page := 2; page <= pages; page++ {
		page := page
		g.Go(func() error {
			records, _, err := s.exportPage(gctx, actor, filter, page)
			if err != nil {
				return err
			}
			mu.Lock()
			results[page-1] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]ExportRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (s *Service) exportPage(ctx context.Context, actor identity.Actor, filter catalog.ListFilter, page int) ([]ExportRecord, int, error) {
	filter.Page = shared.PageRequest{Page: page, PerPage: exportPageSize}
	products, total, err := s.catalog.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products page %d: %w", page, err)
	}
	stamps, err := s.pricer.Stamps(ctx, actor, products)
	if err != nil {
		return nil, 0, fmt.Errorf("price products page %d: %w", page, err)
	}
	records := make([]ExportRecord, len(products))
	for i, p := range products {
		records[i] = ExportRecord{Product: p, Stamp: stamps[i]}
	}
	return records, total, nil
}

// WriteExport encodes records in the layout matching the viewer: a single
// your_price column for client viewers, one column per tier otherwise.
func WriteExport(w io.Writer, format Format, records []ExportRecord, clientView bool) error {
	switch format {
	case FormatCSV:
		if clientView {
			rows := make([]clientExportRow, len(records))
			for i, r := range records {
				rows[i] = clientExportRow{ProductColumns: columnsOf(r.Product), YourPrice: decimalCell(r.Stamp.CurrentPrice)}
			}
			return gocsv.Marshal(rows, w)
		}
		rows := make([]staffExportRow, len(records))
		for i, r := range records {
			rows[i] = staffExportRow{
				ProductColumns: columnsOf(r.Product),
				PriceX:         tierCell(r.Stamp.TierPrices, catalog.TierX),
				PriceS:         tierCell(r.Stamp.TierPrices, catalog.TierS),
				PriceA:         tierCell(r.Stamp.TierPrices, catalog.TierA),
			}
		}
		return gocsv.Marshal(rows, w)
	case FormatXLSX:
		header := append([]string(nil), baseColumns...)
		if clientView {
			header = append(header, colYourPrice)
		} else {
			header = append(header, colPriceX, colPriceS, colPriceA)
		}
		grid := make([][]string, len(records))
		for i, r := range records {
			cells := columnsOf(r.Product).cells()
			if clientView {
				cells = append(cells, decimalCell(r.Stamp.CurrentPrice))
			} else {
				cells = append(cells,
					tierCell(r.Stamp.TierPrices, catalog.TierX),
					tierCell(r.Stamp.TierPrices, catalog.TierS),
					tierCell(r.Stamp.TierPrices, catalog.TierA),
				)
			}
			grid[i] = cells
		}
		return writeXLSX(w, header, grid)
	}
	return shared.Validation("format", "unsupported format %q", format)
}

// WriteTemplate writes the import template: the full header and two
// example rows, a plain product and a bundle of it.
func WriteTemplate(w io.Writer) error {
	header := append(append([]string(nil), baseColumns...), colPriceX, colPriceS, colPriceA)
	rows := [][]string{
		{"WIDGET-01", "Example Widget", "Single widget", "Widgets", "pcs", "1", "10", "5", "5", "0.4", "true", "", "9.00", "9.50", "10.00"},
		{"EXAMPLE-BUNDLE", "Example Bundle", "Includes 2 widgets", "Sets", "set", "1", "20", "10", "5", "1.5", "true", "WIDGET-01:2", "17.00", "18.00", "19.00"},
	}
	return writeXLSX(w, header, rows)
}

func columnsOf(p catalog.Product) ProductColumns {
	return ProductColumns{
		SKU:         p.SKU,
		Name:        p.Name,
		Description: deref(p.Description),
		Category:    deref(p.Category),
		Unit:        p.Unit,
		MinOrderQty: p.MinOrderQty,
		Length:      decimalCell(p.PackageLength),
		Width:       decimalCell(p.PackageWidth),
		Height:      decimalCell(p.PackageHeight),
		Weight:      decimalCell(p.PackageWeight),
		IsActive:    p.IsActive,
		Components:  formatComponents(p.Components),
	}
}

func tierCell(prices catalog.TierPrices, tier catalog.Tier) string {
	price, ok := prices[tier]
	if !ok {
		return ""
	}
	return price.StringFixed(2)
}

func decimalCell(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
