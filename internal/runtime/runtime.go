package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vinodismyname/mcpreports/config"
)

// Limits captures the concurrency and dataset guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxOpenDatasets       int

	// Payload and row bounds
	MaxPayloadBytes int
	MaxRowsPerLoad  int
	PageSize        int
	MaxPageSize     int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxOpenDatasets int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenDatasets <= 0 {
		maxOpenDatasets = config.DefaultMaxOpenDatasets
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenDatasets:       maxOpenDatasets,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		MaxRowsPerLoad:        config.DefaultMaxRowsPerLoad,
		PageSize:              config.DefaultPageSize,
		MaxPageSize:           config.DefaultMaxPageSize,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// LimitsFromConfig applies the environment-driven settings over the defaults.
func LimitsFromConfig(cfg *config.Config) Limits {
	l := NewLimits(cfg.MaxConcurrentRequests, cfg.MaxOpenDatasets)
	if cfg.OperationTimeout > 0 {
		l.OperationTimeout = cfg.OperationTimeout
	}
	if cfg.MaxRowsPerLoad > 0 {
		l.MaxRowsPerLoad = cfg.MaxRowsPerLoad
	}
	return l
}

// Controller coordinates runtime semaphores for request and dataset guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	datasetSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		datasetSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenDatasets)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireDataset reserves an open dataset slot without waiting; a full
// cache is reported immediately so callers can close a handle.
func (c *Controller) AcquireDataset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.datasetSemaphore.TryAcquire(1) {
		return ErrDatasetCapacity
	}
	return nil
}

// ReleaseDataset frees an open dataset slot.
func (c *Controller) ReleaseDataset() {
	c.datasetSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
