package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/eventing"
	"chronicle/messaging"
	synctransport "chronicle/messaging/transport/sync"
)

// typedHandler 订阅固定事件类型的处理器。
type typedHandler struct {
	eventTypes []string
	received   []eventing.IEvent
}

func (h *typedHandler) HandleEvent(ctx context.Context, evt eventing.IEvent) error {
	h.received = append(h.received, evt)
	return nil
}

func (h *typedHandler) Handle(ctx context.Context, message messaging.IMessage) error {
	evt, ok := message.(eventing.IEvent)
	if !ok {
		return nil
	}
	return h.HandleEvent(ctx, evt)
}

func (h *typedHandler) GetEventTypes() []string { return h.eventTypes }
func (h *typedHandler) GetHandlerName() string  { return "typedHandler" }
func (h *typedHandler) Type() string            { return "typedHandler" }

func newEventBus(t *testing.T) *EventBus {
	t.Helper()
	transport := synctransport.NewTransport()
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })
	return NewEventBus(messaging.NewMessageBus(transport))
}

// TestEventBusPublish 测试事件发布与路由
func TestEventBusPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("按事件类型路由到订阅者", func(t *testing.T) {
		eventBus := newEventBus(t)
		handler := &typedHandler{eventTypes: []string{"AccountOpened"}}
		require.NoError(t, eventBus.SubscribeEvent(ctx, "AccountOpened", handler))

		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "AccountOpened", 1, nil)))
		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "MoneyDeposited", 2, nil)))

		require.Len(t, handler.received, 1)
		assert.Equal(t, "AccountOpened", handler.received[0].GetType())
	})

	t.Run("批量发布保持顺序", func(t *testing.T) {
		eventBus := newEventBus(t)
		handler := &typedHandler{}
		require.NoError(t, eventBus.SubscribeEvent(ctx, "*", handler))

		events := []eventing.IEvent{
			eventing.NewEvent(1, "Account", "AccountOpened", 1, nil),
			eventing.NewEvent(1, "Account", "MoneyDeposited", 2, nil),
		}
		require.NoError(t, eventBus.PublishEvents(ctx, events))

		require.Len(t, handler.received, 2)
		assert.Equal(t, uint64(1), handler.received[0].GetVersion())
		assert.Equal(t, uint64(2), handler.received[1].GetVersion())
	})

	t.Run("函数式处理器收到事件", func(t *testing.T) {
		eventBus := newEventBus(t)

		var got eventing.IEvent
		fn := EventHandlerFunc(func(ctx context.Context, evt eventing.IEvent) error {
			got = evt
			return nil
		})
		require.NoError(t, eventBus.SubscribeEvent(ctx, "AccountOpened", fn))

		evt := eventing.NewEvent(1, "Account", "AccountOpened", 1, nil)
		require.NoError(t, eventBus.PublishEvent(ctx, evt))

		require.NotNil(t, got)
		assert.Equal(t, evt.GetID(), got.GetID())
	})
}

// TestSubscribeHandler 测试按声明类型批量订阅
func TestSubscribeHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("按处理器声明的事件类型订阅", func(t *testing.T) {
		eventBus := newEventBus(t)
		handler := &typedHandler{eventTypes: []string{"AccountOpened", "MoneyDeposited"}}
		require.NoError(t, eventBus.SubscribeHandler(ctx, handler))

		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "AccountOpened", 1, nil)))
		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "MoneyDeposited", 2, nil)))
		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "MoneyWithdrawn", 3, nil)))

		assert.Len(t, handler.received, 2)
	})

	t.Run("未声明类型的处理器按通配订阅", func(t *testing.T) {
		eventBus := newEventBus(t)
		handler := &typedHandler{}
		require.NoError(t, eventBus.SubscribeHandler(ctx, handler))

		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "AccountOpened", 1, nil)))
		assert.Len(t, handler.received, 1)
	})

	t.Run("取消订阅后不再接收", func(t *testing.T) {
		eventBus := newEventBus(t)
		handler := &typedHandler{eventTypes: []string{"AccountOpened"}}
		require.NoError(t, eventBus.SubscribeHandler(ctx, handler))
		require.NoError(t, eventBus.UnsubscribeHandler(ctx, handler))

		require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent(1, "Account", "AccountOpened", 1, nil)))
		assert.Empty(t, handler.received)
	})
}
