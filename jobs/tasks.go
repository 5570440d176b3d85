package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every tierquote task runs on.
	QueueDefault = "default"

	TaskExpireSweep = "quotations:expire_sweep"
	TaskCatalogWarm = "catalog:cache_warm"
)

// ExpireSweepPayload pins the sweep to a date; zero means "today" at run time.
type ExpireSweepPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

func NewExpireSweepTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(ExpireSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpireSweep, data), nil
}

// CatalogWarmPayload names the import batch that triggered the warm.
type CatalogWarmPayload struct {
	BatchID string `json:"batch_id,omitempty"`
	Pages   int    `json:"pages"`
}

func NewCatalogWarmTask(batchID string, pages int) (*asynq.Task, error) {
	if pages <= 0 {
		pages = defaultWarmPages
	}
	data, err := json.Marshal(CatalogWarmPayload{BatchID: batchID, Pages: pages})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogWarm, data), nil
}
