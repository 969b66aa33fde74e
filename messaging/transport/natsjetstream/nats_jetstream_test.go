package natsjetstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/messaging"
)

type noopHandler struct{}

func (h *noopHandler) Handle(ctx context.Context, message messaging.IMessage) error { return nil }
func (h *noopHandler) Type() string                                                 { return "noop" }

// TestWireCodec 测试JSON线格式编解码
func TestWireCodec(t *testing.T) {
	t.Run("编码后的消息可还原", func(t *testing.T) {
		msg := &messaging.Message{
			ID:        "msg-1",
			Type:      "MoneyDeposited",
			Timestamp: time.Now(),
			Payload:   map[string]any{"amount": float64(50)},
		}
		msg.SetMetadata("trace_id", "abc")

		data, err := marshalMessage(msg)
		require.NoError(t, err)

		decoded, err := unmarshalMessage(data)
		require.NoError(t, err)
		assert.Equal(t, msg.GetID(), decoded.GetID())
		assert.Equal(t, msg.GetType(), decoded.GetType())
		assert.Equal(t, msg.GetTimestamp().UnixNano(), decoded.GetTimestamp().UnixNano())
		assert.Equal(t, "abc", decoded.GetMetadata()["trace_id"])

		payload, ok := decoded.GetPayload().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(50), payload["amount"])
	})

	t.Run("零时间戳编码时补为当前时间", func(t *testing.T) {
		data, err := marshalMessage(&messaging.Message{ID: "msg-1", Type: "test"})
		require.NoError(t, err)

		decoded, err := unmarshalMessage(data)
		require.NoError(t, err)
		assert.False(t, decoded.GetTimestamp().IsZero())
	})

	t.Run("空载荷还原为nil", func(t *testing.T) {
		data, err := marshalMessage(&messaging.Message{ID: "msg-1", Type: "test"})
		require.NoError(t, err)

		decoded, err := unmarshalMessage(data)
		require.NoError(t, err)
		assert.Nil(t, decoded.GetPayload())
	})

	t.Run("非法数据报错", func(t *testing.T) {
		_, err := unmarshalMessage([]byte("{broken"))
		assert.Error(t, err)
	})
}

// TestTransportConfig 测试配置默认值
func TestTransportConfig(t *testing.T) {
	t.Run("默认值补全", func(t *testing.T) {
		transport := NewTransport(Config{})
		assert.Equal(t, "CHRONICLE", transport.cfg.Stream)
		assert.Equal(t, "events.", transport.cfg.SubjectPrefix)
		assert.Equal(t, "chronicle-", transport.cfg.DurablePrefix)
		assert.Equal(t, 30*time.Second, transport.cfg.AckWait)
		assert.Equal(t, 1024, transport.cfg.MaxAckPending)
		assert.NotNil(t, transport.logger)
	})

	t.Run("显式配置不被覆盖", func(t *testing.T) {
		transport := NewTransport(Config{Stream: "ORDERS", SubjectPrefix: "orders."})
		assert.Equal(t, "ORDERS", transport.cfg.Stream)
		assert.Equal(t, "orders.", transport.cfg.SubjectPrefix)
		assert.Equal(t, "orders.AccountOpened", transport.subjectName("AccountOpened"))
	})
}

// TestTransportLifecycle 测试未连接状态下的行为
func TestTransportLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("未启动时发布报错", func(t *testing.T) {
		transport := NewTransport(Config{})
		err := transport.Publish(ctx, &messaging.Message{ID: "msg-1", Type: "test"})
		assert.Error(t, err)
	})

	t.Run("启动前订阅只登记不建连", func(t *testing.T) {
		transport := NewTransport(Config{})
		require.NoError(t, transport.Subscribe("AccountOpened", &noopHandler{}))
		require.NoError(t, transport.Subscribe("AccountOpened", &noopHandler{}))

		stats := transport.Stats()
		assert.False(t, stats.Running)
		assert.Equal(t, 2, stats.HandlerCount)
		assert.Contains(t, stats.MessageTypes, "AccountOpened")
	})

	t.Run("取消订阅后统计随之减少", func(t *testing.T) {
		transport := NewTransport(Config{})
		handler := &noopHandler{}
		require.NoError(t, transport.Subscribe("AccountOpened", handler))
		require.NoError(t, transport.Unsubscribe("AccountOpened", handler))
		assert.Equal(t, 0, transport.Stats().HandlerCount)
	})

	t.Run("未运行时关闭是无操作", func(t *testing.T) {
		transport := NewTransport(Config{})
		assert.NoError(t, transport.Close())
	})
}
