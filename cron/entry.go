package cron

import "github.com/xraph/taskq/job"

// Entry is a recurring job.
type Entry struct {
	// Name identifies the entry in logs. It must be unique per scheduler.
	Name string `json:"name" yaml:"name"`

	// Schedule is a cron expression or descriptor.
	Schedule string `json:"schedule" yaml:"schedule"`

	// Route is the route of the posted job.
	Route string `json:"route" yaml:"route"`

	// Data is passed to every posted job.
	Data job.Data `json:"data,omitempty" yaml:"data,omitempty"`

	// Queue, when set, posts to that member of a composite backend.
	Queue *int `json:"queue,omitempty" yaml:"queue,omitempty"`
}
