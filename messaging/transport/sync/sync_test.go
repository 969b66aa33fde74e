package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/messaging"
)

type countingHandler struct {
	count int
	err   error
}

func (h *countingHandler) Handle(ctx context.Context, message messaging.IMessage) error {
	h.count++
	return h.err
}

func (h *countingHandler) Type() string { return "counting" }

func newMessage(messageType string) *messaging.Message {
	return &messaging.Message{
		ID:        "msg-1",
		Type:      messageType,
		Timestamp: time.Now(),
	}
}

func startedTransport(t *testing.T) *Transport {
	t.Helper()
	transport := NewTransport()
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

// TestSyncPublish 测试同步发布
func TestSyncPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("精确类型处理器被同步调用", func(t *testing.T) {
		transport := startedTransport(t)
		handler := &countingHandler{}
		require.NoError(t, transport.Subscribe("test", handler))

		require.NoError(t, transport.Publish(ctx, newMessage("test")))
		assert.Equal(t, 1, handler.count)
	})

	t.Run("通配处理器收到所有类型", func(t *testing.T) {
		transport := startedTransport(t)
		wildcard := &countingHandler{}
		require.NoError(t, transport.Subscribe("*", wildcard))

		require.NoError(t, transport.Publish(ctx, newMessage("a")))
		require.NoError(t, transport.Publish(ctx, newMessage("b")))
		assert.Equal(t, 2, wildcard.count)
	})

	t.Run("无人监听不算错误", func(t *testing.T) {
		transport := startedTransport(t)
		assert.NoError(t, transport.Publish(ctx, newMessage("nobody")))
	})

	t.Run("处理器错误汇总上抛且不中断其余处理器", func(t *testing.T) {
		transport := startedTransport(t)
		failing := &countingHandler{err: errors.New("handler down")}
		healthy := &countingHandler{}
		require.NoError(t, transport.Subscribe("test", failing))
		require.NoError(t, transport.Subscribe("test", healthy))

		err := transport.Publish(ctx, newMessage("test"))
		assert.ErrorContains(t, err, "handler down")
		assert.Equal(t, 1, healthy.count)
	})

	t.Run("未启动时发布报错", func(t *testing.T) {
		transport := NewTransport()
		assert.Error(t, transport.Publish(ctx, newMessage("test")))
	})
}

// TestSyncSubscription 测试订阅管理
func TestSyncSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("取消订阅后不再接收", func(t *testing.T) {
		transport := startedTransport(t)
		handler := &countingHandler{}
		require.NoError(t, transport.Subscribe("test", handler))
		require.NoError(t, transport.Unsubscribe("test", handler))

		require.NoError(t, transport.Publish(ctx, newMessage("test")))
		assert.Equal(t, 0, handler.count)
	})

	t.Run("取消不存在的订阅报错", func(t *testing.T) {
		transport := startedTransport(t)
		assert.Error(t, transport.Unsubscribe("missing", &countingHandler{}))
	})

	t.Run("统计信息反映订阅状态", func(t *testing.T) {
		transport := startedTransport(t)
		require.NoError(t, transport.Subscribe("a", &countingHandler{}))
		require.NoError(t, transport.Subscribe("a", &countingHandler{}))
		require.NoError(t, transport.Subscribe("b", &countingHandler{}))

		stats := transport.Stats()
		assert.True(t, stats.Running)
		assert.Equal(t, 3, stats.HandlerCount)
		assert.ElementsMatch(t, []string{"a", "b"}, stats.MessageTypes)
	})
}

// TestSyncLifecycle 测试启停
func TestSyncLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("重复启动与重复关闭报错", func(t *testing.T) {
		transport := NewTransport()
		require.NoError(t, transport.Start(ctx))
		assert.Error(t, transport.Start(ctx))
		require.NoError(t, transport.Close())
		assert.Error(t, transport.Close())
	})
}
