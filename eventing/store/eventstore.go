// Package store 定义事件存储抽象与内存实现。
//
// 存储层以信封事件（eventing.IStorableEvent）为单位操作，
// 以 expectedVersion 做乐观并发控制：追加前检查聚合当前版本，
// 不匹配时返回 eventing.ConcurrencyError。
package store

import (
	"context"

	"chronicle/eventing"
)

// IEventStore 事件存储接口
type IEventStore interface {
	// AppendEvents 追加事件到聚合的事件流。
	// expectedVersion 为调用方所见的聚合当前版本（即最后一个已持久化事件的版本），
	// 不匹配时返回 *eventing.ConcurrencyError。
	AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error

	// LoadEvents 按版本升序加载聚合的事件，仅返回版本大于 afterVersion 的部分。
	LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error)

	// HasAggregate 检查聚合是否存在。
	HasAggregate(ctx context.Context, aggregateID int64) (bool, error)

	// GetAggregateVersion 返回聚合当前版本，不存在时返回 (0, nil)。
	GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error)
}
