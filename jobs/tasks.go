// Package jobs holds the asynq task definitions and the worker that runs
// them. The only background work in this core is permission reconciliation.
package jobs

// Queue names used by the worker.
const (
	QueueDefault = "default"
)
