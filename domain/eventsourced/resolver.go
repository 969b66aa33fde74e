package eventsourced

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"chronicle/domain"
)

// 事件处理方法的解析规则：
//
// 约定路径：具体聚合类型上名为 On<事件类型名> 的导出方法，
// 有且仅有一个参数，且参数类型与事件的运行期类型完全一致。
// 参数个数是契约的一部分：同名但带两个及以上参数的方法不是候选。
// 方法可以无返回值，或返回一个 error。
//
// 注册路径：未导出的处理方法无法通过反射调用，
// 聚合可在自身包内通过 RegisterHandler 直接绑定函数引用，
// 绕开可见性限制（分发表持有的是类型内部绑定的引用）。
//
// 同一事件类型同时存在注册处理器与约定方法时，注册处理器优先，
// 一个事件只会被调用恰好一次。
// 对同一事件类型重复注册属于构造期配置错误，立即 panic 拒绝。

// applyFunc 将一个事件应用到聚合。
type applyFunc func(evt domain.IDomainEvent) error

// methodTable 事件运行期类型 → 具体聚合类型上的方法下标。
type methodTable map[reflect.Type]int

// methodTableCache 按具体聚合类型缓存约定方法表，
// 运行期分发是一次表查找，而非重复反射扫描。
var methodTableCache sync.Map // reflect.Type -> methodTable

var errType = reflect.TypeOf((*error)(nil)).Elem()

// methodTableFor 构建（或取缓存的）约定方法表。
func methodTableFor(t reflect.Type) methodTable {
	if cached, ok := methodTableCache.Load(t); ok {
		return cached.(methodTable)
	}
	table := make(methodTable)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, "On") {
			continue
		}
		// 接收者 + 恰好一个事件参数
		if m.Type.NumIn() != 2 {
			continue
		}
		switch m.Type.NumOut() {
		case 0:
		case 1:
			if m.Type.Out(0) != errType {
				continue
			}
		default:
			continue
		}
		param := m.Type.In(1)
		if m.Name != "On"+eventTypeName(param) {
			continue
		}
		table[param] = m.Index
	}
	actual, _ := methodTableCache.LoadOrStore(t, table)
	return actual.(methodTable)
}

// eventTypeName 返回事件参数类型的裸类型名（解指针）。
func eventTypeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// dispatcher 聚合根的事件分发器。
//
// registered 持有类型内部显式绑定的处理器；
// table/target 在 bind 后承担约定方法的反射调用。
type dispatcher struct {
	target     reflect.Value
	table      methodTable
	registered map[reflect.Type]applyFunc
}

func (d *dispatcher) bind(target any) {
	d.target = reflect.ValueOf(target)
	d.table = methodTableFor(d.target.Type())
}

func (d *dispatcher) register(eventType reflect.Type, fn applyFunc) {
	if d.registered == nil {
		d.registered = make(map[reflect.Type]applyFunc)
	}
	if _, dup := d.registered[eventType]; dup {
		panic(fmt.Sprintf("eventsourced: duplicate handler registered for event type %s", eventType))
	}
	d.registered[eventType] = fn
}

// dispatch 将事件路由到恰好一个处理器；没有匹配时无操作。
func (d *dispatcher) dispatch(evt domain.IDomainEvent) error {
	eventType := reflect.TypeOf(evt)
	if fn, ok := d.registered[eventType]; ok {
		return fn(evt)
	}
	idx, ok := d.table[eventType]
	if !ok {
		return nil
	}
	out := d.target.Method(idx).Call([]reflect.Value{reflect.ValueOf(evt)})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

// RegisterHandler 为一种事件类型显式绑定处理函数。
//
// 用于未导出的处理方法（反射不可见），或需要替换约定方法的场景。
// 必须在聚合工厂中调用；对同一事件类型重复注册会 panic。
func RegisterHandler[T comparable, E domain.IDomainEvent](a *AggregateRoot[T], handler func(evt E) error) {
	if handler == nil {
		panic("eventsourced: nil handler registered")
	}
	eventType := reflect.TypeOf((*E)(nil)).Elem()
	a.dispatcher.register(eventType, func(evt domain.IDomainEvent) error {
		return handler(evt.(E))
	})
}

// Ensure interface compliance.
var _ IEventSourcedAggregate[int64] = (*AggregateRoot[int64])(nil)
