package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gordonpn/plex-2-discord/internal/metrics"
)

type DispatcherConfig struct {
	WorkerCount int
	QueueSize   int
	// SendTimeout bounds a single outbound call. Zero leaves it to the HTTP client.
	SendTimeout time.Duration
}

// Dispatcher delivers messages on a pool of workers. Delivery is best-effort:
// a failed call is logged and counted, never retried. Send never blocks; when
// the queue is full the message waits in its own goroutine for a free slot.
type Dispatcher struct {
	config   DispatcherConfig
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	queue     chan Message
	waitGroup sync.WaitGroup
	// overflow tracks senders parked on a full queue.
	overflow sync.WaitGroup
}

func NewDispatcher(config DispatcherConfig, notifier Notifier, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 128
	}

	return &Dispatcher{
		config:   config,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "dispatcher").Str("notifier", notifier.Name()).Logger(),
		queue:    make(chan Message, config.QueueSize),
	}
}

func (dispatcher *Dispatcher) Start() {
	for range dispatcher.config.WorkerCount {
		dispatcher.waitGroup.Add(1)
		go func() {
			defer dispatcher.waitGroup.Done()
			for msg := range dispatcher.queue {
				dispatcher.deliver(msg)
			}
		}()
	}
}

// Stop rejects new messages and waits for queued ones to be delivered. The
// workers must have been started.
func (dispatcher *Dispatcher) Stop() {
	dispatcher.mu.Lock()
	if dispatcher.closed {
		dispatcher.mu.Unlock()
		return
	}
	dispatcher.closed = true
	dispatcher.mu.Unlock()

	dispatcher.overflow.Wait()
	close(dispatcher.queue)
	dispatcher.waitGroup.Wait()
}

func (dispatcher *Dispatcher) Send(msg Message) {
	dispatcher.mu.RLock()
	defer dispatcher.mu.RUnlock()

	if dispatcher.closed {
		dispatcher.drop(msg, "dispatcher_stopped")
		return
	}

	select {
	case dispatcher.queue <- msg:
	default:
		dispatcher.overflow.Add(1)
		go func() {
			defer dispatcher.overflow.Done()
			dispatcher.queue <- msg
		}()
	}
}

func (dispatcher *Dispatcher) drop(msg Message, reason string) {
	dispatcher.metrics.RecordNotificationDropped(string(msg.Kind))
	dispatcher.logger.Warn().Str("kind", string(msg.Kind)).Str("reason", reason).Msg("notification dropped")
}

func (dispatcher *Dispatcher) deliver(msg Message) {
	ctx := context.Background()
	if dispatcher.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dispatcher.config.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	err := dispatcher.notifier.Notify(ctx, msg)
	elapsed := time.Since(start)
	dispatcher.metrics.RecordNotification(string(msg.Kind), elapsed, err)

	if err != nil {
		dispatcher.logger.Warn().Err(err).Str("kind", string(msg.Kind)).Dur("elapsed", elapsed).Msg("notification failed")
		return
	}
	dispatcher.logger.Debug().Str("kind", string(msg.Kind)).Dur("elapsed", elapsed).Bool("attachment", msg.Attachment != nil).Msg("notification sent")
}
