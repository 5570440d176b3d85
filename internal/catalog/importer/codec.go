package importer

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Format is a spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"

	sheetName = "Products"
)

// FormatFromFilename picks the codec from a file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", shared.Validation("file", "unsupported file type %q, expected .xlsx or .csv", filepath.Ext(name))
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return ContentTypeCSV
	}
	return ContentTypeXLSX
}

// ReadRows decodes a spreadsheet into rows. The header must name sku and
// name; column names are matched case-insensitively.
func ReadRows(format Format, r io.Reader) ([]Row, error) {
	var (
		records []map[string]string
		header  map[string]bool
		err     error
	)
	switch format {
	case FormatXLSX:
		records, header, err = readXLSX(r)
	case FormatCSV:
		records, header, err = readCSV(r)
	default:
		return nil, shared.Validation("file", "unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if !header[colSKU] || !header[colName] {
		return nil, shared.Validation("file", "missing required columns: sku, name")
	}
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		// line 1 is the header
		rows = append(rows, rowFromRecord(i+2, rec))
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([]map[string]string, map[string]bool, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, shared.Validation("file", "unreadable xlsx: %v", err)
	}
	grid := book.GetRows(book.GetSheetName(book.GetActiveSheetIndex()))
	if len(grid) == 0 {
		grid = book.GetRows(book.GetSheetName(1))
	}
	if len(grid) == 0 {
		return nil, map[string]bool{}, nil
	}
	columns := normalizeHeader(grid[0])
	header := make(map[string]bool, len(columns))
	for _, c := range columns {
		header[c] = c != ""
	}
	records := make([]map[string]string, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		rec := make(map[string]string, len(columns))
		for i, c := range columns {
			if c != "" && i < len(cells) {
				rec[c] = cells[i]
			}
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func readCSV(r io.Reader) ([]map[string]string, map[string]bool, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	maps, err := gocsv.CSVToMaps(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, shared.Validation("file", "unreadable csv: %v", err)
	}
	header := map[string]bool{}
	records := make([]map[string]string, 0, len(maps))
	for _, m := range maps {
		rec := make(map[string]string, len(m))
		for k, v := range m {
			key := strings.ToLower(strings.TrimSpace(k))
			rec[key] = v
			header[key] = true
		}
		records = append(records, rec)
	}
	if len(maps) == 0 {
		// a header-only file still declares its columns
		first, _, _ := bytes.Cut(raw, []byte("\n"))
		for _, c := range normalizeHeader(strings.Split(strings.TrimRight(string(first), "\r"), ",")) {
			header[c] = c != ""
		}
	}
	return records, header, nil
}

func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

// writeXLSX renders header and rows into a single sheet workbook.
func writeXLSX(w io.Writer, header []string, rows [][]string) error {
	book := excelize.NewFile()
	book.SetSheetName("Sheet1", sheetName)
	for col, title := range header {
		book.SetCellValue(sheetName, cellName(col, 1), title)
	}
	for i, row := range rows {
		for col, value := range row {
			if value == "" {
				continue
			}
			book.SetCellValue(sheetName, cellName(col, i+2), value)
		}
	}
	return book.Write(w)
}

// cellName converts a zero based column and one based row to A1 notation.
func cellName(col, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name + strconv.Itoa(row)
}

// ProductColumns are the export columns every viewer gets.
type ProductColumns struct {
	SKU         string `csv:"sku"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
	Category    string `csv:"category"`
	Unit        string `csv:"unit"`
	MinOrderQty int    `csv:"min_order_qty"`
	Length      string `csv:"package_length"`
	Width       string `csv:"package_width"`
	Height      string `csv:"package_height"`
	Weight      string `csv:"package_weight"`
	IsActive    bool   `csv:"is_active"`
	Components  string `csv:"components"`
}

type staffExportRow struct {
	ProductColumns
	PriceX string `csv:"price_x"`
	PriceS string `csv:"price_s"`
	PriceA string `csv:"price_a"`
}

type clientExportRow struct {
	ProductColumns
	YourPrice string `csv:"your_price"`
}

func (b ProductColumns) cells() []string {
	return []string{
		b.SKU, b.Name, b.Description, b.Category, b.Unit, strconv.Itoa(b.MinOrderQty),
		b.Length, b.Width, b.Height, b.Weight, strconv.FormatBool(b.IsActive), b.Components,
	}
}
