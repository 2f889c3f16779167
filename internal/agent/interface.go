package agent

import "context"

// Agent is a recurring background job run by the Scheduler.
//
// Implementations:
//   - SearchReindexAgent: rebuilds the meilisearch thread index
type Agent interface {
	// GetName returns the unique agent name used in logs and RunAgentByName.
	GetName() string

	// GetSchedule returns a cron expression (e.g. "0 3 * * *"). An empty
	// schedule registers the agent for on-demand runs only.
	GetSchedule() string

	// Execute runs one pass of the job.
	Execute(ctx context.Context) error
}
