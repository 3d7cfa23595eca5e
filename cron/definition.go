package cron

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/taskq/job"
)

// Definition is a typed entry. Data must be JSON-serializable; it becomes
// the job data the route handler decodes.
type Definition[T any] struct {
	Name     string
	Schedule string
	Route    string
	Data     T
}

// Entry converts the definition into an untyped Entry.
func (d Definition[T]) Entry() (Entry, error) {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return Entry{}, fmt.Errorf("taskq/cron: encode %s data: %w", d.Name, err)
	}
	var data job.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Entry{}, fmt.Errorf("taskq/cron: %s data must be an object: %w", d.Name, err)
	}
	return Entry{Name: d.Name, Schedule: d.Schedule, Route: d.Route, Data: data}, nil
}
