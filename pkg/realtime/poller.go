package realtime

import (
	"context"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/metrics"
	"go.uber.org/zap"
)

// Updater gives exclusive access to the timetable searches run on.
type Updater interface {
	UpdateRealtime(fn func(tt *da.Timetable) error) error
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context) (*gtfs.FeedMessage, error)
}

// Poller periodically fetches a TripUpdates feed and applies it to the timetable.
type Poller struct {
	fetcher  FeedFetcher
	updater  Updater
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Collector
}

func NewPoller(fetcher FeedFetcher, updater Updater, interval time.Duration, logger *zap.Logger,
	collector *metrics.Collector) *Poller {
	return &Poller{
		fetcher:  fetcher,
		updater:  updater,
		interval: interval,
		logger:   logger,
		metrics:  collector,
	}
}

// Poll fetches the feed once. the download happens outside the timetable lock.
func (p *Poller) Poll(ctx context.Context) (ApplyStats, error) {
	feed, err := p.fetcher.FetchFeed(ctx)
	if err != nil {
		p.metrics.ObserveRealtime(err, 0, 0)
		return ApplyStats{}, err
	}

	var stats ApplyStats
	err = p.updater.UpdateRealtime(func(tt *da.Timetable) error {
		stats = ApplyFeed(tt, feed)
		return nil
	})
	p.metrics.ObserveRealtime(err, stats.Delayed, stats.Canceled)
	return stats, err
}

// Run polls until ctx is done. a failed poll keeps the previous realtime state.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		stats, err := p.Poll(ctx)
		if err != nil {
			p.logger.Warn("realtime poll failed", zap.Error(err))
		} else {
			p.logger.Info("realtime feed applied",
				zap.Int("delayed", stats.Delayed),
				zap.Int("canceled", stats.Canceled),
				zap.Int("unknown", stats.Unknown))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
