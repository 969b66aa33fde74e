package eventsourced

import (
	"context"
	"fmt"

	"chronicle/eventing/bus"
	"chronicle/logging"
)

// PublishingRepository 为事件溯源仓储提供保存后发布支持。
//
// 装饰器：Save 先委托基础仓储持久化并提交，成功后把本次保存的
// 事件信封发布到事件总线；读取路径全部委托基础仓储。
//
// 注意：持久化与发布不在同一事务内，总线发布失败只告警不回滚——
// 需要原子投递语义时应由上层引入 Outbox 方案。
type PublishingRepository[T IEventSourcedAggregate[int64]] struct {
	base     *EventSourcedRepository[T]
	eventBus bus.IEventBus
	logger   logging.Logger
}

// NewPublishingRepository 创建发布装饰器。
func NewPublishingRepository[T IEventSourcedAggregate[int64]](base *EventSourcedRepository[T], eventBus bus.IEventBus) (*PublishingRepository[T], error) {
	if base == nil {
		return nil, fmt.Errorf("base repository cannot be nil")
	}
	if eventBus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}
	return &PublishingRepository[T]{
		base:     base,
		eventBus: eventBus,
		logger:   base.logger,
	}, nil
}

// Save 持久化后将已提交的事件发布到总线。
func (r *PublishingRepository[T]) Save(ctx context.Context, aggregate T) error {
	envelopes, err := r.base.saveEnvelopes(ctx, aggregate)
	if err != nil {
		return err
	}
	if len(envelopes) == 0 {
		return nil
	}

	if err := r.eventBus.PublishEvents(ctx, envelopes); err != nil {
		r.logger.Warn(ctx, "publish committed events failed",
			logging.Error(err),
			logging.Int64("aggregate_id", aggregate.GetID()),
			logging.Int("event_count", len(envelopes)))
	}
	return nil
}

// 读取相关方法全部委托给基础仓储
func (r *PublishingRepository[T]) GetByID(ctx context.Context, id int64) (T, error) {
	return r.base.GetByID(ctx, id)
}

func (r *PublishingRepository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	return r.base.Exists(ctx, id)
}

func (r *PublishingRepository[T]) GetAggregateVersion(ctx context.Context, id int64) (uint64, error) {
	return r.base.GetAggregateVersion(ctx, id)
}

// Ensure interface compliance.
var _ IEventSourcedRepository[IEventSourcedAggregate[int64]] = (*PublishingRepository[IEventSourcedAggregate[int64]])(nil)
