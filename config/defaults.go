package config

import "time"

// Default runtime limits and guardrails for the report server.
// They are referenced by internal/runtime and internal/datasets and can be
// overridden through environment variables (see Load).

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 4

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxRowsPerLoad  = 500_000
	DefaultPageSize        = 50
	DefaultMaxPageSize     = 500
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second

	// Dataset handle cache
	DefaultDatasetIdleTTL       = 10 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute
)

const (
	// Report presentation
	DefaultUnknownKeyLabel = "(unknown)"
	DefaultSummaryModel    = "gpt-4o"
	DefaultSummaryTokens   = 512

	// Partition count above which summaries fan out across workers.
	DefaultParallelThreshold = 2_000
	DefaultParallelWorkers   = 4
)
