package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		_, err := bus.Subscribe(ctx, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, domain.TopicAlert, []byte("hello")))

		select {
		case msg := <-got:
			assert.Equal(t, "hello", string(msg.Payload))
			assert.Equal(t, domain.TopicAlert, msg.Topic)
			assert.NotEmpty(t, msg.ID)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var requested, completed atomic.Int32
		done := make(chan struct{}, 1)

		_, _ = bus.Subscribe(ctx, domain.TopicScreeningRequested, func(ctx context.Context, msg *domain.Message) error {
			requested.Add(1)
			return nil
		})
		_, _ = bus.Subscribe(ctx, domain.TopicScreeningCompleted, func(ctx context.Context, msg *domain.Message) error {
			completed.Add(1)
			done <- struct{}{}
			return nil
		})

		_ = bus.Publish(ctx, domain.TopicScreeningCompleted, []byte("{}"))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
		time.Sleep(20 * time.Millisecond)

		assert.Equal(t, int32(0), requested.Load())
		assert.Equal(t, int32(1), completed.Load())
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var n atomic.Int32
		sub, err := bus.Subscribe(ctx, "laft.unsub", func(ctx context.Context, msg *domain.Message) error {
			n.Add(1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "laft.unsub", sub.Topic())

		require.NoError(t, sub.Unsubscribe())
		_ = bus.Publish(ctx, "laft.unsub", []byte("x"))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), n.Load())
	})

	t.Run("TopicRequired", func(t *testing.T) {
		assert.Error(t, bus.Publish(ctx, "", nil))
		_, err := bus.Subscribe(ctx, "", nil)
		assert.Error(t, err)
	})
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)
	ctx := context.Background()

	_, _ = bus.Subscribe(ctx, "laft.close", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Error(t, bus.Publish(ctx, "laft.close", []byte("data")))
	assert.Error(t, bus.Ping(ctx))
	_, err := bus.Subscribe(ctx, "laft.close", nil)
	assert.Error(t, err)
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		bus, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		require.NoError(t, err)
		defer bus.Close()

		assert.IsType(t, &ChannelBus{}, bus)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.EventBusConfig{Type: "kafka"})
		assert.Error(t, err)
	})
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()

	var received atomic.Int32
	const messageCount = 100
	done := make(chan struct{})

	_, _ = bus.Subscribe(ctx, "laft.load", func(ctx context.Context, msg *domain.Message) error {
		if received.Add(1) == messageCount {
			close(done)
		}
		return nil
	})

	for _i := 0; _i < messageCount; _i++ {
		_ = bus.Publish(ctx, "laft.load", []byte("msg"))
	}

	select {
	case <-done:
		assert.Equal(t, int32(messageCount), received.Load())
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), messageCount)
	}
}
