// Package scheduler drives the periodic poll pass over the device collection
// and publishes the flattened telemetry.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvbus/pvbus/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DeviceStatus is a point-in-time availability snapshot of one device.
type DeviceStatus struct {
	Address byte   `json:"address"`
	Status  string `json:"status"`
}

// Poller runs one poll pass per tick. A pass walks the device collection in
// order, polls each device on the shared bus, and publishes every device's
// flattened snapshot whether or not its poll succeeded. Both the device
// collection lock and the bus lock are try-acquired; a contended tick is
// skipped entirely rather than queued, so a slow pass can never back up the
// timer.
type Poller struct {
	devices     []domain.Device
	publisher   domain.MessagePublisher
	topicPrefix string
	interval    time.Duration

	devMu *sync.Mutex
	busMu *sync.Mutex

	logger    zerolog.Logger
	ticker    *time.Ticker
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mutex     sync.Mutex

	startedAt time.Time

	passesRun       int64
	passesSkipped   int64
	publishFailures int64
}

// NewPoller creates a poller over the device collection. busMu is the mutex
// serializing access to the shared serial bus; the protocol engines do not
// lock it themselves.
func NewPoller(devices []domain.Device, publisher domain.MessagePublisher, topicPrefix string, interval time.Duration, busMu *sync.Mutex) *Poller {
	return &Poller{
		devices:     devices,
		publisher:   publisher,
		topicPrefix: topicPrefix,
		interval:    interval,
		devMu:       &sync.Mutex{},
		busMu:       busMu,
		logger:      log.With().Str("component", "scheduler").Logger(),
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isRunning {
		return fmt.Errorf("poller is already running")
	}

	p.ticker = time.NewTicker(p.interval)
	p.isRunning = true
	p.startedAt = time.Now()

	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info().
		Dur("interval", p.interval).
		Int("devices", len(p.devices)).
		Msg("Poller started")
	return nil
}

// Stop shuts down the poll loop and waits for an in-flight pass to finish.
func (p *Poller) Stop() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.isRunning {
		return fmt.Errorf("poller is not running")
	}

	close(p.stopChan)
	p.ticker.Stop()
	p.wg.Wait()
	p.isRunning = false

	p.logger.Info().Msg("Poller stopped")
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-p.ticker.C:
			p.RunPass(ctx)
		}
	}
}

// RunPass executes a single poll pass if both locks are free. A contended
// lock skips the whole pass; the next tick is the retry.
func (p *Poller) RunPass(ctx context.Context) {
	if !p.devMu.TryLock() {
		atomic.AddInt64(&p.passesSkipped, 1)
		p.logger.Warn().Msg("Device collection busy, skipping pass")
		return
	}
	defer p.devMu.Unlock()

	if !p.busMu.TryLock() {
		atomic.AddInt64(&p.passesSkipped, 1)
		p.logger.Warn().Msg("Bus busy, skipping pass")
		return
	}
	defer p.busMu.Unlock()

	for _, dev := range p.devices {
		if err := dev.Poll(); err != nil {
			p.logger.Warn().
				Err(err).
				Uint8("address", dev.Address()).
				Msg("Device poll failed")
		}
		// publish the snapshot either way; stale values beat silence
		for _, pair := range dev.Flatten(p.topicPrefix) {
			p.publish(ctx, pair)
		}
	}

	uptime := strconv.FormatInt(int64(time.Since(p.startedAt).Seconds()), 10)
	p.publish(ctx, domain.Pair{Topic: p.topicPrefix, Payload: uptime})

	atomic.AddInt64(&p.passesRun, 1)
}

func (p *Poller) publish(ctx context.Context, pair domain.Pair) {
	if err := p.publisher.Publish(ctx, pair.Topic, pair.Payload); err != nil {
		atomic.AddInt64(&p.publishFailures, 1)
		p.logger.Error().
			Err(err).
			Str("topic", pair.Topic).
			Msg("Publish failed")
	}
}

// DeviceStatuses snapshots the availability of every device. It takes the
// collection lock, so it may briefly block a poll pass (or be the reason one
// is skipped).
func (p *Poller) DeviceStatuses() []DeviceStatus {
	p.devMu.Lock()
	defer p.devMu.Unlock()

	statuses := make([]DeviceStatus, 0, len(p.devices))
	for _, dev := range p.devices {
		statuses = append(statuses, DeviceStatus{Address: dev.Address(), Status: dev.Status()})
	}
	return statuses
}

// Metrics returns pass counters for the status endpoint.
func (p *Poller) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"passes_run":       atomic.LoadInt64(&p.passesRun),
		"passes_skipped":   atomic.LoadInt64(&p.passesSkipped),
		"publish_failures": atomic.LoadInt64(&p.publishFailures),
	}
}
