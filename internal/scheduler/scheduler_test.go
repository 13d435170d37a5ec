package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pvbus/pvbus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	address byte
	status  string
	pollErr error
	polls   int
}

func (d *fakeDevice) Address() byte { return d.address }
func (d *fakeDevice) Status() string {
	if d.status == "" {
		return "Offline"
	}
	return d.status
}

func (d *fakeDevice) Poll() error {
	d.polls++
	return d.pollErr
}

func (d *fakeDevice) Flatten(prefix string) []domain.Pair {
	return []domain.Pair{
		{Topic: prefix + "/" + d.Status(), Payload: "1"},
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	pairs  []domain.Pair
	pubErr error
}

func (p *fakePublisher) Connect(context.Context) error { return nil }
func (p *fakePublisher) Close() error                  { return nil }

func (p *fakePublisher) Publish(_ context.Context, topic, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pubErr != nil {
		return p.pubErr
	}
	p.pairs = append(p.pairs, domain.Pair{Topic: topic, Payload: payload})
	return nil
}

func (p *fakePublisher) published() []domain.Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Pair(nil), p.pairs...)
}

func TestRunPassPollsAndPublishes(t *testing.T) {
	devices := []domain.Device{
		&fakeDevice{address: 2, status: "Online"},
		&fakeDevice{address: 3, status: "Online"},
	}
	pub := &fakePublisher{}
	p := NewPoller(devices, pub, "energy", time.Second, &sync.Mutex{})
	p.startedAt = time.Now()

	p.RunPass(context.Background())

	pairs := pub.published()
	// one pair per device plus the liveness pair
	require.Len(t, pairs, 3)
	assert.Equal(t, "energy/Online", pairs[0].Topic)
	assert.Equal(t, "energy", pairs[2].Topic)
}

func TestRunPassSkipsWhenDeviceCollectionBusy(t *testing.T) {
	dev := &fakeDevice{address: 2}
	pub := &fakePublisher{}
	p := NewPoller([]domain.Device{dev}, pub, "energy", time.Second, &sync.Mutex{})

	p.devMu.Lock()
	defer p.devMu.Unlock()
	p.RunPass(context.Background())

	assert.Zero(t, dev.polls, "no bus traffic on a skipped pass")
	assert.Empty(t, pub.published())
	assert.EqualValues(t, 1, p.Metrics()["passes_skipped"])
}

func TestRunPassSkipsWhenBusBusy(t *testing.T) {
	dev := &fakeDevice{address: 2}
	pub := &fakePublisher{}
	busMu := &sync.Mutex{}
	p := NewPoller([]domain.Device{dev}, pub, "energy", time.Second, busMu)

	busMu.Lock()
	defer busMu.Unlock()
	p.RunPass(context.Background())

	assert.Zero(t, dev.polls)
	assert.Empty(t, pub.published())
}

func TestRunPassIsolatesDeviceFailure(t *testing.T) {
	failing := &fakeDevice{address: 2, status: "Offline", pollErr: errors.New("no response")}
	healthy := &fakeDevice{address: 3, status: "Online"}
	pub := &fakePublisher{}
	p := NewPoller([]domain.Device{failing, healthy}, pub, "energy", time.Second, &sync.Mutex{})
	p.startedAt = time.Now()

	p.RunPass(context.Background())

	assert.Equal(t, 1, healthy.polls, "failure of one device must not stop the pass")

	var sawStale, sawHealthy bool
	for _, pair := range pub.published() {
		if strings.HasSuffix(pair.Topic, "/Offline") {
			sawStale = true
		}
		if strings.HasSuffix(pair.Topic, "/Online") {
			sawHealthy = true
		}
	}
	assert.True(t, sawStale, "stale snapshot of the failing device still published")
	assert.True(t, sawHealthy)
}

func TestRunPassCountsPublishFailures(t *testing.T) {
	dev := &fakeDevice{address: 2}
	pub := &fakePublisher{pubErr: errors.New("broker gone")}
	p := NewPoller([]domain.Device{dev}, pub, "energy", time.Second, &sync.Mutex{})
	p.startedAt = time.Now()

	p.RunPass(context.Background())

	assert.EqualValues(t, 2, p.Metrics()["publish_failures"])
}

func TestDeviceStatuses(t *testing.T) {
	devices := []domain.Device{
		&fakeDevice{address: 2, status: "Online"},
		&fakeDevice{address: 10, status: "Registered"},
	}
	p := NewPoller(devices, &fakePublisher{}, "energy", time.Second, &sync.Mutex{})

	statuses := p.DeviceStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, DeviceStatus{Address: 2, Status: "Online"}, statuses[0])
	assert.Equal(t, DeviceStatus{Address: 10, Status: "Registered"}, statuses[1])
}

func TestStartStop(t *testing.T) {
	p := NewPoller(nil, &fakePublisher{}, "energy", 10*time.Millisecond, &sync.Mutex{})

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()), "second start must be rejected")

	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop(), "second stop must be rejected")
}
