package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pvbus/pvbus/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishedMessage struct {
	topic    string
	payload  string
	retained bool
}

type fakeClient struct {
	mu         sync.Mutex
	connectErr error
	publishErr error
	published  []publishedMessage
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return newFakeToken(c.connectErr) }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return newFakeToken(c.publishErr)
	}
	c.published = append(c.published, publishedMessage{
		topic:    topic,
		payload:  payload.(string),
		retained: retained,
	})
	return newFakeToken(nil)
}

func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newFakeToken(nil)
}

func (c *fakeClient) Unsubscribe(...string) mqtt.Token       { return newFakeToken(nil) }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)   {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MQTT.Enabled = true
	cfg.MQTT.TopicPrefix = "energy/pv"
	return cfg
}

func TestNoopPublisher(t *testing.T) {
	publisher := NewNoopPublisher()
	ctx := context.Background()

	assert.NoError(t, publisher.Connect(ctx))
	assert.NoError(t, publisher.Publish(ctx, "test/topic", "42"))
	assert.NoError(t, publisher.Close())
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MQTT.Enabled = false

	publisher := NewMQTTPublisher(cfg)
	assert.NoError(t, publisher.Connect(context.Background()))
	assert.False(t, publisher.connected)
}

func TestConnectAnnouncesOnline(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(testConfig(), client)

	require.NoError(t, publisher.Connect(context.Background()))
	assert.True(t, publisher.connected)

	require.Len(t, client.published, 1)
	assert.Equal(t, "energy/pv", client.published[0].topic)
	assert.Equal(t, "online", client.published[0].payload)
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	cfg := testConfig()
	cfg.MQTT.Retain = true
	publisher := NewMQTTPublisherWithClient(cfg, client)
	require.NoError(t, publisher.Connect(context.Background()))

	require.NoError(t, publisher.Publish(context.Background(), "energy/pv/2/grid", "230.5"))

	last := client.published[len(client.published)-1]
	assert.Equal(t, "energy/pv/2/grid", last.topic)
	assert.Equal(t, "230.5", last.payload)
	assert.True(t, last.retained)
}

func TestPublishNotConnectedIsNoop(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(testConfig(), client)

	assert.NoError(t, publisher.Publish(context.Background(), "energy/pv/2/grid", "230.5"))
	assert.Empty(t, client.published)
}

func TestPublishSurfacesBrokerError(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	require.NoError(t, publisher.Connect(context.Background()))

	client.publishErr = assert.AnError
	err := publisher.Publish(context.Background(), "energy/pv/2/grid", "230.5")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClose(t *testing.T) {
	client := &fakeClient{}
	publisher := NewMQTTPublisherWithClient(testConfig(), client)
	require.NoError(t, publisher.Connect(context.Background()))

	assert.NoError(t, publisher.Close())
	assert.False(t, publisher.connected)
}
