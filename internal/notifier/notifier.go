// Package notifier runs the notification dispatch loop.
package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/quakebot/internal/metrics"
	"github.com/user/quakebot/internal/storage"
	"github.com/user/quakebot/internal/telegram"
	"github.com/user/quakebot/pkg/logger"
)

// Telegram allows ~30 messages per second bot-wide; stay under it.
const sendsPerSecond = 25

// EventSource is the store surface the notifier needs.
type EventSource interface {
	Unnotified() ([]storage.Earthquake, error)
	MarkNotified(ids []string) error
	AllChatIDs() ([]int64, error)
}

// Sender is the delivery sink: it attempts to push one message to one
// chat. A returned error is per-recipient and never aborts the batch.
type Sender interface {
	Send(chatID int64, text string) error
}

// Notifier periodically looks for unnotified events and fans each one out
// to every subscriber. An event is marked notified only after a delivery
// attempt was made to every subscriber known at dispatch time; if the
// cycle fails before that point, nothing is marked and the whole batch is
// retried on the next cycle.
type Notifier struct {
	store         EventSource
	sender        Sender
	interval      time.Duration
	retryInterval time.Duration
	limiter       *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier with the given cycle intervals.
func NewNotifier(store EventSource, sender Sender, interval, retryInterval time.Duration) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		store:         store,
		sender:        sender,
		interval:      interval,
		retryInterval: retryInterval,
		limiter:       rate.NewLimiter(rate.Limit(sendsPerSecond), sendsPerSecond),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the notification loop.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.run()
	logger.Info().Dur("interval", n.interval).Msg("Notifier started")
}

// Stop gracefully stops the notifier.
func (n *Notifier) Stop() {
	logger.Info().Msg("Stopping notifier")
	n.cancel()
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		wait := n.interval
		if err := n.cycle(n.ctx); err != nil {
			logger.Error().Err(err).Msg("Notification cycle failed")
			metrics.NotifyCycles.WithLabelValues("error").Inc()
			wait = n.retryInterval
		} else {
			metrics.NotifyCycles.WithLabelValues("ok").Inc()
		}

		select {
		case <-n.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// cycle performs one poll-and-dispatch pass. Any returned error means no
// event from this pass was marked notified.
func (n *Notifier) cycle(ctx context.Context) error {
	quakes, err := n.store.Unnotified()
	if err != nil {
		return err
	}
	if len(quakes) == 0 {
		return nil
	}

	// Subscribers are fetched once up front; a chat subscribing while
	// this batch is in flight catches the next one.
	chatIDs, err := n.store.AllChatIDs()
	if err != nil {
		return err
	}

	dispatched := make([]string, 0, len(quakes))
	for _, q := range quakes {
		text := telegram.EarthquakeMessage(q)
		for _, chatID := range chatIDs {
			if err := n.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := n.sender.Send(chatID, text); err != nil {
				logger.Error().Err(err).Int64("chat_id", chatID).Str("event_id", q.ID).Msg("Failed to send notification")
				metrics.Sends.WithLabelValues("error").Inc()
				continue
			}
			metrics.Sends.WithLabelValues("ok").Inc()
		}
		dispatched = append(dispatched, q.ID)
	}

	if err := n.store.MarkNotified(dispatched); err != nil {
		return err
	}

	logger.Info().Int("events", len(dispatched)).Int("subscribers", len(chatIDs)).Msg("Notifications dispatched")
	return nil
}
