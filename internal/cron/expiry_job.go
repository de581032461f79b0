package cron

import (
	"context"
	"fmt"

	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

type expiredReleaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

type orderExpiryJob struct {
	logg    *logger.Logger
	sweeper expiredReleaser
}

// NewOrderExpiryJob wraps the expiry sweeper as a scheduled job.
func NewOrderExpiryJob(logg *logger.Logger, sweeper expiredReleaser) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper service required")
	}
	return &orderExpiryJob{logg: logg, sweeper: sweeper}, nil
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	released, err := j.sweeper.ReleaseExpired(ctx)
	logCtx := j.logg.WithField(ctx, "released", released)
	if err != nil {
		// Partial progress still counts; the error carries the per-order
		// failures.
		j.logg.Warn(logCtx, "order expiry sweep finished with errors")
		return err
	}
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
