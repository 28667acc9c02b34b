// Package ingest runs the feed polling loop.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/user/quakebot/internal/metrics"
	"github.com/user/quakebot/internal/storage"
	"github.com/user/quakebot/pkg/logger"
)

// Feed fetches normalized events from the upstream provider.
type Feed interface {
	Fetch(ctx context.Context) ([]storage.Earthquake, error)
}

// EventWriter persists fetched events, skipping already-known ids.
type EventWriter interface {
	InsertIfAbsent([]storage.Earthquake) error
}

// Ingestor periodically fetches the feed and persists new events. A
// successful cycle schedules the next one after interval; a failed cycle
// backs off to retryInterval. The loop runs until Stop and never
// propagates an error to its caller.
type Ingestor struct {
	feed          Feed
	store         EventWriter
	interval      time.Duration
	retryInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIngestor creates an ingestor with the given cycle intervals.
func NewIngestor(feed Feed, store EventWriter, interval, retryInterval time.Duration) *Ingestor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		feed:          feed,
		store:         store,
		interval:      interval,
		retryInterval: retryInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the ingestion loop.
func (i *Ingestor) Start() {
	i.wg.Add(1)
	go i.run()
	logger.Info().Dur("interval", i.interval).Msg("Ingestor started")
}

// Stop gracefully stops the ingestor.
func (i *Ingestor) Stop() {
	logger.Info().Msg("Stopping ingestor")
	i.cancel()
	i.wg.Wait()
}

func (i *Ingestor) run() {
	defer i.wg.Done()

	for {
		wait := i.interval
		if err := i.cycle(); err != nil {
			logger.Error().Err(err).Msg("Ingestion cycle failed")
			metrics.IngestCycles.WithLabelValues("error").Inc()
			wait = i.retryInterval
		} else {
			metrics.IngestCycles.WithLabelValues("ok").Inc()
		}

		select {
		case <-i.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// cycle performs one fetch-and-persist pass.
func (i *Ingestor) cycle() error {
	quakes, err := i.feed.Fetch(i.ctx)
	if err != nil {
		return err
	}
	metrics.EventsFetched.Add(float64(len(quakes)))

	if len(quakes) == 0 {
		logger.Debug().Msg("Feed returned no events")
		return nil
	}

	if err := i.store.InsertIfAbsent(quakes); err != nil {
		return err
	}

	logger.Info().Int("count", len(quakes)).Msg("Events persisted")
	return nil
}
