package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/catalog/importer"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
	"github.com/odyssey-erp/tierquote/internal/users"
	"github.com/odyssey-erp/tierquote/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s *stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func (s *stubInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "cron", Type: jobs.TaskExpireSweep}}, nil
}

func (s *stubInspector) Close() error { return nil }

func TestTriggerExpireSweepPinsDate(t *testing.T) {
	enq := &stubEnqueuer{}
	jc := &JobsCLI{client: enq}
	asOf := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	info, err := jc.Trigger(context.Background(), jobs.TaskExpireSweep, asOf)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskExpireSweep, info.Type)
	require.Len(t, enq.tasks, 1)

	var payload jobs.ExpireSweepPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.True(t, payload.AsOf.Equal(asOf))
}

func TestTriggerRejectsUnknownTask(t *testing.T) {
	jc := &JobsCLI{client: &stubEnqueuer{}}
	_, err := jc.Trigger(context.Background(), "reports:nightly", time.Time{})
	assert.ErrorContains(t, err, "unsupported job")

	var unset *JobsCLI
	_, err = unset.Trigger(context.Background(), jobs.TaskCatalogWarm, time.Time{})
	assert.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	jc := &JobsCLI{inspector: &stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1, Failed: 4}}}
	stats, err := jc.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1, Failed: 4}, stats)

	jc = &JobsCLI{inspector: &stubInspector{err: asynq.ErrQueueNotFound}}
	stats, err = jc.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats)

	scheduled, err := jc.ListScheduled(0)
	require.NoError(t, err)
	assert.Len(t, scheduled, 1)
}

type stubPorter struct {
	actor identity.Actor
	rows  []importer.Row
}

func (s *stubPorter) Import(ctx context.Context, actor identity.Actor, rows []importer.Row) (*importer.Report, error) {
	s.actor = actor
	s.rows = rows
	return &importer.Report{BatchID: "b1", Total: len(rows), Succeeded: len(rows)}, nil
}

func (s *stubPorter) Export(ctx context.Context, actor identity.Actor) ([]importer.ExportRecord, error) {
	s.actor = actor
	price := decimal.RequireFromString("12.50")
	return []importer.ExportRecord{{
		Product: catalog.Product{ID: 1, SKU: "WIDGET-01", Name: "Widget", Unit: "pcs", MinOrderQty: 1, IsActive: true,
			TierPrices: catalog.TierPrices{catalog.TierA: price}},
		Stamp: catalog.PriceStamp{CurrentPrice: &price},
	}}, nil
}

type stubDirectory map[int64]*users.User

func (d stubDirectory) Get(ctx context.Context, id int64) (*users.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, shared.NotFound("user", id)
}

func directory() stubDirectory {
	clientID := int64(9)
	return stubDirectory{
		1: {ID: 1, Role: identity.RoleAdmin, IsActive: true},
		2: {ID: 2, Role: identity.RoleClient, ClientID: &clientID, IsActive: true},
		3: {ID: 3, Role: identity.RoleSales, IsActive: false},
	}
}

func TestImportFileRunsAsUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte("sku,name,price_a\nWIDGET-01,Widget,12.50\n"), 0o600))

	porter := &stubPorter{}
	report, err := NewCatalogCLI(porter, directory()).ImportFile(context.Background(), 1, path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, identity.RoleAdmin, porter.actor.Role)
	require.Len(t, porter.rows, 1)
	assert.Equal(t, "WIDGET-01", porter.rows[0].SKU)
}

func TestImportFileErrors(t *testing.T) {
	c := NewCatalogCLI(&stubPorter{}, directory())

	_, err := c.ImportFile(context.Background(), 1, "products.json")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = c.ImportFile(context.Background(), 99, "products.csv")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = c.ImportFile(context.Background(), 3, "products.csv")
	assert.ErrorIs(t, err, shared.ErrAuthorization)
}

func TestExportUsesClientView(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewCatalogCLI(&stubPorter{}, directory()).Export(context.Background(), 2, importer.FormatCSV, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "your_price")
	assert.NotContains(t, buf.String(), "price_x")
}
