package eventsourced

import (
	"context"
	"encoding/json"
	"fmt"

	"chronicle/domain"
	"chronicle/eventing"
	"chronicle/eventing/registry"
	"chronicle/eventing/store"
	"chronicle/logging"
)

// IEventSourcedRepository 事件溯源仓储接口。
// 仓储是聚合的持久化协作方：读取未提交事件、持久化成功后触发提交。
type IEventSourcedRepository[T IEventSourcedAggregate[int64]] interface {
	// Save 持久化聚合的未提交事件，成功后清空缓冲。
	Save(ctx context.Context, aggregate T) error

	// GetByID 通过重放事件流重建聚合。
	GetByID(ctx context.Context, id int64) (T, error)

	// Exists 检查聚合是否存在。
	Exists(ctx context.Context, id int64) (bool, error)

	// GetAggregateVersion 获取聚合的当前版本号，不存在时返回 (0, nil)。
	GetAggregateVersion(ctx context.Context, id int64) (uint64, error)
}

// EventSourcedRepository 默认事件溯源仓储实现。
//
// Save 将领域事件包进 eventing.Event 信封后追加到事件存储，
// expectedVersion 取自聚合序号与未提交事件数之差，作乐观并发控制；
// GetByID 加载信封、经注册表还原领域事件后按序重放。
type EventSourcedRepository[T IEventSourcedAggregate[int64]] struct {
	aggregateType string
	factory       func(id int64) T
	eventStore    store.IEventStore
	events        *registry.Registry
	logger        logging.Logger
}

// NewEventSourcedRepository 创建事件溯源仓储。
// eventRegistry 可为 nil：此时只支持载荷本身就是领域事件的存储（如内存存储）。
func NewEventSourcedRepository[T IEventSourcedAggregate[int64]](
	aggregateType string,
	factory func(id int64) T,
	eventStore store.IEventStore,
	eventRegistry *registry.Registry,
) (*EventSourcedRepository[T], error) {
	if aggregateType == "" {
		return nil, fmt.Errorf("aggregate type cannot be empty")
	}
	if factory == nil {
		return nil, fmt.Errorf("aggregate factory cannot be nil")
	}
	if eventStore == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	return &EventSourcedRepository[T]{
		aggregateType: aggregateType,
		factory:       factory,
		eventStore:    eventStore,
		events:        eventRegistry,
		logger: logging.GetLogger().WithFields(
			logging.String("component", "eventsourced.repository"),
			logging.String("aggregate_type", aggregateType),
		),
	}, nil
}

// Save 保存聚合的未提交事件。
// 存储追加成功后调用 CommitEvents 清空缓冲；缓冲为空时无操作。
func (r *EventSourcedRepository[T]) Save(ctx context.Context, aggregate T) error {
	_, err := r.saveEnvelopes(ctx, aggregate)
	return err
}

// saveEnvelopes 执行实际保存，返回本次写入存储的信封
// （供发布装饰器在提交后投递同一批信封）。
func (r *EventSourcedRepository[T]) saveEnvelopes(ctx context.Context, aggregate T) ([]eventing.IEvent, error) {
	uncommitted := aggregate.GetUncommittedEvents()
	if len(uncommitted) == 0 {
		return nil, nil
	}

	expectedVersion := aggregate.GetCurrentEventID() - uint64(len(uncommitted))
	envelopes := make([]eventing.IStorableEvent, 0, len(uncommitted))
	for _, evt := range uncommitted {
		envelopes = append(envelopes, r.wrap(aggregate, evt))
	}

	if err := r.eventStore.AppendEvents(ctx, aggregate.GetID(), envelopes, expectedVersion); err != nil {
		return nil, err
	}

	aggregate.CommitEvents()
	r.logger.Debug(ctx, "aggregate saved",
		logging.Int64("aggregate_id", aggregate.GetID()),
		logging.Int("event_count", len(uncommitted)),
		logging.Uint64("version", aggregate.GetCurrentEventID()))

	published := make([]eventing.IEvent, len(envelopes))
	for i, env := range envelopes {
		published[i] = env
	}
	return published, nil
}

// GetByID 根据 ID 加载聚合：工厂创建空实例后按序重放事件流。
// 聚合不存在时返回空实例（版本 0），不报错。
func (r *EventSourcedRepository[T]) GetByID(ctx context.Context, id int64) (T, error) {
	aggregate := r.factory(id)

	envelopes, err := r.eventStore.LoadEvents(ctx, id, 0)
	if err != nil {
		return aggregate, err
	}
	if len(envelopes) == 0 {
		return aggregate, nil
	}

	history := make([]domain.IDomainEvent, 0, len(envelopes))
	for i := range envelopes {
		evt, err := r.unwrap(&envelopes[i])
		if err != nil {
			return aggregate, err
		}
		history = append(history, evt)
	}
	if err := aggregate.LoadFromHistory(history); err != nil {
		return aggregate, err
	}
	return aggregate, nil
}

// Exists 检查聚合是否存在。
func (r *EventSourcedRepository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	return r.eventStore.HasAggregate(ctx, id)
}

// GetAggregateVersion 获取聚合当前版本。
func (r *EventSourcedRepository[T]) GetAggregateVersion(ctx context.Context, id int64) (uint64, error) {
	return r.eventStore.GetAggregateVersion(ctx, id)
}

// wrap 将领域事件包进存储信封，版本取事件已盖章的序号。
func (r *EventSourcedRepository[T]) wrap(aggregate T, evt domain.IDomainEvent) *eventing.Event {
	schemaVersion := 1
	if r.events != nil {
		schemaVersion = r.events.GetSchemaVersion(evt.EventType())
	}
	return eventing.NewEvent(aggregate.GetID(), r.aggregateType, evt.EventType(), evt.GetEventID(), evt, schemaVersion)
}

// unwrap 从存储信封还原领域事件并回填序号。
//
// 载荷本身是领域事件时直接使用（内存存储路径）；
// 否则按注册表反序列化（SQL 存储返回 json.RawMessage，
// 经总线转运的事件可能是 map）。
func (r *EventSourcedRepository[T]) unwrap(envelope *eventing.Event) (domain.IDomainEvent, error) {
	payload := envelope.GetPayload()

	if evt, ok := payload.(domain.IDomainEvent); ok {
		evt.SetEventID(envelope.GetVersion())
		return evt, nil
	}

	if r.events == nil {
		return nil, &eventing.EventStoreError{
			Code:      eventing.ErrCodeDeserialize,
			Message:   fmt.Sprintf("payload is %T and no event registry configured", payload),
			EventID:   envelope.GetID(),
			EventType: envelope.GetType(),
		}
	}

	var (
		evt domain.IDomainEvent
		err error
	)
	switch p := payload.(type) {
	case json.RawMessage:
		evt, err = r.events.Deserialize(envelope.GetType(), p)
	case []byte:
		evt, err = r.events.Deserialize(envelope.GetType(), p)
	case map[string]any:
		evt, err = r.events.DeserializeFromMap(envelope.GetType(), p)
	default:
		err = fmt.Errorf("unsupported payload type %T", payload)
	}
	if err != nil {
		return nil, &eventing.EventStoreError{
			Code:      eventing.ErrCodeDeserialize,
			Message:   "decode event payload failed",
			Cause:     err,
			EventID:   envelope.GetID(),
			EventType: envelope.GetType(),
		}
	}

	evt.SetEventID(envelope.GetVersion())
	return evt, nil
}

// Ensure interface compliance.
var _ IEventSourcedRepository[IEventSourcedAggregate[int64]] = (*EventSourcedRepository[IEventSourcedAggregate[int64]])(nil)
