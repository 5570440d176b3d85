// Package importer moves products in and out of spreadsheets. Rows are
// validated one by one and every row gets its own outcome in the report.
package importer

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

const (
	colSKU         = "sku"
	colName        = "name"
	colDescription = "description"
	colCategory    = "category"
	colUnit        = "unit"
	colMinOrderQty = "min_order_qty"
	colLength      = "package_length"
	colWidth       = "package_width"
	colHeight      = "package_height"
	colWeight      = "package_weight"
	colActive      = "is_active"
	colComponents  = "components"
	colPriceX      = "price_x"
	colPriceS      = "price_s"
	colPriceA      = "price_a"
	colYourPrice   = "your_price"
)

// baseColumns are shared by the template, imports and both export layouts.
var baseColumns = []string{
	colSKU, colName, colDescription, colCategory, colUnit, colMinOrderQty,
	colLength, colWidth, colHeight, colWeight, colActive, colComponents,
}

var tierColumns = map[catalog.Tier]string{
	catalog.TierX: colPriceX,
	catalog.TierS: colPriceS,
	catalog.TierA: colPriceA,
}

// Row is one spreadsheet line as text, before coercion.
type Row struct {
	Line        int
	SKU         string
	Name        string
	Description string
	Category    string
	Unit        string
	MinOrderQty string
	Length      string
	Width       string
	Height      string
	Weight      string
	IsActive    string
	Components  string
	Prices      map[catalog.Tier]string
}

// Blank reports a line with neither sku nor name; such lines are skipped.
func (r Row) Blank() bool {
	return r.SKU == "" && r.Name == ""
}

func rowFromRecord(line int, rec map[string]string) Row {
	get := func(col string) string { return strings.TrimSpace(rec[col]) }
	row := Row{
		Line:        line,
		SKU:         get(colSKU),
		Name:        get(colName),
		Description: get(colDescription),
		Category:    get(colCategory),
		Unit:        get(colUnit),
		MinOrderQty: get(colMinOrderQty),
		Length:      get(colLength),
		Width:       get(colWidth),
		Height:      get(colHeight),
		Weight:      get(colWeight),
		IsActive:    get(colActive),
		Components:  get(colComponents),
		Prices:      map[catalog.Tier]string{},
	}
	for tier, col := range tierColumns {
		if v := get(col); v != "" {
			row.Prices[tier] = v
		}
	}
	return row
}

// fields holds the coerced optional attributes shared by create and update.
type fields struct {
	description *string
	category    *string
	unit        *string
	minOrderQty *int
	length      *decimal.Decimal
	width       *decimal.Decimal
	height      *decimal.Decimal
	weight      *decimal.Decimal
	isActive    *bool
	prices      map[string]decimal.Decimal
}

func (r Row) coerce() (fields, error) {
	var f fields
	if r.SKU == "" || r.Name == "" {
		return f, shared.Validation("sku", "sku and name are required")
	}
	if r.Description != "" {
		f.description = &r.Description
	}
	if r.Category != "" {
		f.category = &r.Category
	}
	if r.Unit != "" {
		f.unit = &r.Unit
	}
	if r.MinOrderQty != "" {
		qty, err := cast.ToIntE(r.MinOrderQty)
		if err != nil || qty < 1 {
			return f, shared.Validation(colMinOrderQty, "invalid quantity %q", r.MinOrderQty)
		}
		f.minOrderQty = &qty
	}
	for _, dim := range []struct {
		col string
		raw string
		dst **decimal.Decimal
	}{
		{colLength, r.Length, &f.length},
		{colWidth, r.Width, &f.width},
		{colHeight, r.Height, &f.height},
		{colWeight, r.Weight, &f.weight},
	} {
		if dim.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(dim.raw)
		if err != nil {
			return f, shared.Validation(dim.col, "invalid number %q", dim.raw)
		}
		*dim.dst = &v
	}
	if r.IsActive != "" {
		active, err := cast.ToBoolE(strings.ToLower(r.IsActive))
		if err != nil {
			return f, shared.Validation(colActive, "invalid flag %q", r.IsActive)
		}
		f.isActive = &active
	}
	if len(r.Prices) > 0 {
		f.prices = make(map[string]decimal.Decimal, len(r.Prices))
		for tier, raw := range r.Prices {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return f, shared.Validation(tierColumns[tier], "invalid price %q", raw)
			}
			f.prices[string(tier)] = price
		}
	}
	return f, nil
}

func (f fields) createRequest(r Row) catalog.CreateProductRequest {
	req := catalog.CreateProductRequest{
		SKU:           r.SKU,
		Name:          r.Name,
		Description:   f.description,
		Category:      f.category,
		PackageLength: f.length,
		PackageWidth:  f.width,
		PackageHeight: f.height,
		PackageWeight: f.weight,
		IsActive:      f.isActive,
		TierPrices:    f.prices,
	}
	if f.unit != nil {
		req.Unit = *f.unit
	}
	if f.minOrderQty != nil {
		req.MinOrderQty = *f.minOrderQty
	}
	return req
}

// updateRequest leaves blank cells untouched on the stored product.
func (f fields) updateRequest(r Row) catalog.UpdateProductRequest {
	req := catalog.UpdateProductRequest{
		Name:          &r.Name,
		Description:   f.description,
		Category:      f.category,
		Unit:          f.unit,
		MinOrderQty:   f.minOrderQty,
		PackageLength: f.length,
		PackageWidth:  f.width,
		PackageHeight: f.height,
		PackageWeight: f.weight,
		IsActive:      f.isActive,
	}
	if f.prices != nil {
		req.TierPrices = &f.prices
	}
	return req
}

type componentRef struct {
	SKU      string
	Quantity int
}

// parseComponents reads "SKU:Qty;SKU:Qty". A missing quantity means one.
func parseComponents(raw string) ([]componentRef, error) {
	var refs []componentRef
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sku, qtyRaw, hasQty := strings.Cut(entry, ":")
		ref := componentRef{SKU: strings.TrimSpace(sku), Quantity: 1}
		if ref.SKU == "" {
			return nil, shared.Validation(colComponents, "empty sku in %q", entry)
		}
		if hasQty {
			qty, err := cast.ToIntE(strings.TrimSpace(qtyRaw))
			if err != nil || qty < 1 {
				return nil, shared.Validation(colComponents, "invalid quantity in %q", entry)
			}
			ref.Quantity = qty
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func formatComponents(components []catalog.Component) string {
	parts := make([]string, 0, len(components))
	for _, c := range components {
		parts = append(parts, c.SKU+":"+cast.ToString(c.Quantity))
	}
	return strings.Join(parts, ";")
}
