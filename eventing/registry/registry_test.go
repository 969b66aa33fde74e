package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/domain"
)

type accountOpened struct {
	domain.DomainEvent
	Owner string `json:"owner"`
}

func (e *accountOpened) EventType() string { return "AccountOpened" }

type moneyDeposited struct {
	domain.DomainEvent
	Amount int64 `json:"amount"`
}

func (e *moneyDeposited) EventType() string { return "MoneyDeposited" }

// TestRegister 测试事件类型注册
func TestRegister(t *testing.T) {
	t.Run("注册后可查询", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("AccountOpened", func() domain.IDomainEvent { return &accountOpened{} }))

		assert.True(t, r.HasEvent("AccountOpened"))
		assert.False(t, r.HasEvent("AccountClosed"))
		assert.Contains(t, r.GetRegisteredTypes(), "AccountOpened")
		assert.Equal(t, 1, r.GetSchemaVersion("AccountOpened"))
	})

	t.Run("重复注册被拒绝", func(t *testing.T) {
		r := NewRegistry()
		factory := func() domain.IDomainEvent { return &accountOpened{} }
		require.NoError(t, r.Register("AccountOpened", factory))
		assert.Error(t, r.Register("AccountOpened", factory))
	})

	t.Run("非法参数被拒绝", func(t *testing.T) {
		r := NewRegistry()
		factory := func() domain.IDomainEvent { return &accountOpened{} }

		assert.Error(t, r.Register("", factory))
		assert.Error(t, r.Register("AccountOpened", nil))
		assert.Error(t, r.RegisterWithVersion("AccountOpened", 0, factory))
		assert.Error(t, r.Register("NilEvent", func() domain.IDomainEvent { return nil }))
	})

	t.Run("带模式版本注册", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterWithVersion("MoneyDeposited", 2, func() domain.IDomainEvent { return &moneyDeposited{} }))
		assert.Equal(t, 2, r.GetSchemaVersion("MoneyDeposited"))
	})

	t.Run("未注册类型的模式版本按1处理", func(t *testing.T) {
		r := NewRegistry()
		assert.Equal(t, 1, r.GetSchemaVersion("Unknown"))
	})

	t.Run("MustRegister失败时panic", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister("AccountOpened", func() domain.IDomainEvent { return &accountOpened{} })
		assert.Panics(t, func() {
			r.MustRegister("AccountOpened", func() domain.IDomainEvent { return &accountOpened{} })
		})
	})

	t.Run("取消注册后不可查询", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("AccountOpened", func() domain.IDomainEvent { return &accountOpened{} }))
		r.Unregister("AccountOpened")
		assert.False(t, r.HasEvent("AccountOpened"))
	})
}

// TestDeserialize 测试载荷还原
func TestDeserialize(t *testing.T) {
	newRegistry := func(t *testing.T) *Registry {
		t.Helper()
		r := NewRegistry()
		require.NoError(t, r.Register("AccountOpened", func() domain.IDomainEvent { return &accountOpened{} }))
		return r
	}

	t.Run("从JSON还原强类型事件", func(t *testing.T) {
		r := newRegistry(t)

		evt, err := r.Deserialize("AccountOpened", []byte(`{"owner":"alice"}`))
		require.NoError(t, err)

		opened, ok := evt.(*accountOpened)
		require.True(t, ok)
		assert.Equal(t, "alice", opened.Owner)
	})

	t.Run("从map还原强类型事件", func(t *testing.T) {
		r := newRegistry(t)

		evt, err := r.DeserializeFromMap("AccountOpened", map[string]any{"owner": "bob"})
		require.NoError(t, err)

		opened, ok := evt.(*accountOpened)
		require.True(t, ok)
		assert.Equal(t, "bob", opened.Owner)
	})

	t.Run("未注册类型报错", func(t *testing.T) {
		r := newRegistry(t)
		_, err := r.Deserialize("AccountClosed", []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("非法JSON报错", func(t *testing.T) {
		r := newRegistry(t)
		_, err := r.Deserialize("AccountOpened", []byte(`{broken`))
		assert.Error(t, err)
	})

	t.Run("nil的map报错", func(t *testing.T) {
		r := newRegistry(t)
		_, err := r.DeserializeFromMap("AccountOpened", nil)
		assert.Error(t, err)
	})

	t.Run("每次还原返回独立实例", func(t *testing.T) {
		r := newRegistry(t)
		a, err := r.Deserialize("AccountOpened", []byte(`{"owner":"alice"}`))
		require.NoError(t, err)
		b, err := r.Deserialize("AccountOpened", []byte(`{"owner":"bob"}`))
		require.NoError(t, err)
		assert.NotSame(t, a, b)
	})
}

// TestGlobalRegistry 测试全局注册表
func TestGlobalRegistry(t *testing.T) {
	t.Run("全局注册后可全局查询", func(t *testing.T) {
		eventType := "registry_test.GlobalProbe"
		MustRegisterGlobal(eventType, func() domain.IDomainEvent { return &accountOpened{} })
		defer Global().Unregister(eventType)

		assert.True(t, Global().HasEvent(eventType))
	})
}
