package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/odyssey-erp/tierquote/internal/catalog/importer"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
)

// Porter is the importer surface the CLI drives.
type Porter interface {
	Import(ctx context.Context, actor identity.Actor, rows []importer.Row) (*importer.Report, error)
	Export(ctx context.Context, actor identity.Actor) ([]importer.ExportRecord, error)
}

// Directory resolves the user a command acts as.
type Directory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
}

// CatalogCLI runs bulk catalog operations as a named user, so the same
// capability checks apply as over HTTP.
type CatalogCLI struct {
	porter Porter
	users  Directory
}

func NewCatalogCLI(porter Porter, users Directory) *CatalogCLI {
	return &CatalogCLI{porter: porter, users: users}
}

func (c *CatalogCLI) actor(ctx context.Context, userID int64) (identity.Actor, error) {
	u, err := c.users.Get(ctx, userID)
	if err != nil {
		return identity.Actor{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	if !u.IsActive {
		return identity.Actor{}, shared.Forbidden("user %d is inactive", userID)
	}
	return u.Actor(), nil
}

// ImportFile reads an .xlsx or .csv file and imports it as userID.
func (c *CatalogCLI) ImportFile(ctx context.Context, userID int64, path string) (*importer.Report, error) {
	format, err := importer.FormatFromFilename(path)
	if err != nil {
		return nil, err
	}
	actor, err := c.actor(ctx, userID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := importer.ReadRows(format, f)
	if err != nil {
		return nil, err
	}
	return c.porter.Import(ctx, actor, rows)
}

// Export writes the catalog in format as seen by userID.
func (c *CatalogCLI) Export(ctx context.Context, userID int64, format importer.Format, w io.Writer) (int, error) {
	actor, err := c.actor(ctx, userID)
	if err != nil {
		return 0, err
	}
	records, err := c.porter.Export(ctx, actor)
	if err != nil {
		return 0, err
	}
	if err := importer.WriteExport(w, format, records, !actor.Privileged()); err != nil {
		return 0, err
	}
	return len(records), nil
}
