package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/metrics"
)

// Publisher is the subset of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events in a channel and publishes them in batches of up
// to batchSize, or whatever has accumulated after flushInterval.
type Collector struct {
	publisher     Publisher
	eventCh       chan QueryEvent
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	dropped       atomic.Int64
	logger        *slog.Logger
	done          chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewCollector(publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan QueryEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It returns immediately; once ctx is
// cancelled the loop drains what is buffered and exits.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, toKafkaEvent(event))
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.drainRemaining(batch)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh), "batch_size", c.batchSize)
}

// Track enqueues an event, dropping it if the buffer is full or the
// collector is closed.
func (c *Collector) Track(event QueryEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.observe("dropped", 1)
		c.logger.Debug("analytics event dropped (collector closed)")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.observe("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the buffer to be published.
// Later Track calls are dropped. Close is safe to call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drainRemaining(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(ctx, batch)
				return
			}
			batch = append(batch, toKafkaEvent(event))
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		default:
			c.flush(ctx, batch)
			return
		}
	}
}

// flush publishes batch and returns an empty slice for reuse. Failed
// batches are dropped; the events are advisory.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
		c.observe("error", len(batch))
	} else {
		c.observe("ok", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) observe(status string, n int) {
	if c.metrics != nil {
		c.metrics.EventsPublishedTotal.WithLabelValues(status).Add(float64(n))
	}
}

// toKafkaEvent keys events by type so rejections and successes keep their
// relative order per partition.
func toKafkaEvent(event QueryEvent) kafka.Event {
	return kafka.Event{Key: string(event.Type), Value: event}
}
