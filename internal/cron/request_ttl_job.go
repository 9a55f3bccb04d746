package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/seangolding876/partsfinda-backend/internal/requests"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

const requestTTLBatchSize = 200

type requestExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// RequestTTLJobParams configure the request expiry job.
type RequestTTLJobParams struct {
	Logger   *logger.Logger
	Requests requestExpirer
}

// NewRequestTTLJob builds the cron job that expires open requests whose TTL
// elapsed, along with their undelivered queue entries.
func NewRequestTTLJob(params RequestTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Requests == nil {
		return nil, fmt.Errorf("requests service required")
	}
	return &requestTTLJob{
		logg:     params.Logger,
		requests: params.Requests,
		now:      time.Now,
	}, nil
}

var _ requestExpirer = (requests.Service)(nil)

type requestTTLJob struct {
	logg     *logger.Logger
	requests requestExpirer
	now      func() time.Time
}

func (j *requestTTLJob) Name() string { return "request-ttl" }

func (j *requestTTLJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.requests.ExpireDue(ctx, j.now().UTC(), requestTTLBatchSize)
		if err != nil {
			return fmt.Errorf("expire due requests: %w", err)
		}
		total += expired
		if expired < requestTTLBatchSize {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "count", total), "request expiry loop complete")
	return nil
}
