// Package eventsourced 实现事件溯源聚合根：
// 事件应用、未提交事件缓冲、事件序号分配与提交边界。
package eventsourced

import (
	"chronicle/domain"
)

// IEventSourcedAggregate 事件溯源聚合根接口。
// 状态完全由事件重建，仓储协作方只通过该接口与聚合交互。
type IEventSourcedAggregate[T comparable] interface {
	domain.IEntity[T]

	// GetAggregateType 返回聚合根类型名称。
	GetAggregateType() string

	// ApplyEvent 应用事件到聚合根（仅修改状态，不影响缓冲与序号）。
	ApplyEvent(evt domain.IDomainEvent) error

	// PublishEvent 发布新事件：盖章序号、记录为未提交并应用。
	PublishEvent(evt domain.IDomainEvent) error

	// LoadFromHistory 按原始顺序重放历史事件并推进序号。
	LoadFromHistory(events []domain.IDomainEvent) error

	// GetCurrentEventID 返回最后分配的事件序号。
	GetCurrentEventID() uint64

	// GetUncommittedEvents 获取未提交的事件（只读视图）。
	GetUncommittedEvents() []domain.IDomainEvent

	// CommitEvents 在持久化成功后清空未提交缓冲。
	CommitEvents()
}

// AggregateRoot 事件溯源聚合根基础实现。
//
// 持有单调递增的事件序号与按发布顺序排列的未提交事件缓冲。
// 所有事件（新发布或历史重放）都经由 ApplyEvent 分发到处理方法，
// 分发规则见 resolver.go。
//
// 聚合实例不做内部加锁：仓储协作方负责按聚合标识串行化访问，
// 一个逻辑工作单元内加载、变更、提交同一个聚合。
//
// 使用方式：具体聚合内嵌 *AggregateRoot 并在工厂函数中调用 Bind，
// 使按约定命名的事件处理方法（On<事件类型名>）可被分发：
//
//	type Account struct {
//	    *eventsourced.AggregateRoot[int64]
//	    Balance int64
//	}
//
//	func NewAccount(id int64) *Account {
//	    a := &Account{AggregateRoot: eventsourced.NewAggregateRoot[int64](id, "Account")}
//	    a.Bind(a)
//	    return a
//	}
//
//	func (a *Account) OnMoneyDeposited(e *MoneyDeposited) { a.Balance += e.Amount }
type AggregateRoot[T comparable] struct {
	id                T
	aggregateType     string
	currentEventID    uint64
	uncommittedEvents []domain.IDomainEvent
	dispatcher        dispatcher
}

// NewAggregateRoot 创建聚合根基础实例，序号为 0、缓冲为空。
func NewAggregateRoot[T comparable](id T, aggregateType string) *AggregateRoot[T] {
	return &AggregateRoot[T]{
		id:            id,
		aggregateType: aggregateType,
	}
}

// GetID 实现 IObject 接口。
func (a *AggregateRoot[T]) GetID() T {
	return a.id
}

// GetVersion 实现 IEntity 接口。版本号即最后分配的事件序号。
func (a *AggregateRoot[T]) GetVersion() int64 {
	return int64(a.currentEventID)
}

// GetAggregateType 返回聚合类型。
func (a *AggregateRoot[T]) GetAggregateType() string {
	return a.aggregateType
}

// GetCurrentEventID 返回最后分配的事件序号。
func (a *AggregateRoot[T]) GetCurrentEventID() uint64 {
	return a.currentEventID
}

// Bind 绑定具体聚合实例，构建其按约定命名的事件处理方法表。
// 应在具体聚合的工厂函数中调用一次；方法表按具体类型缓存。
func (a *AggregateRoot[T]) Bind(target any) {
	a.dispatcher.bind(target)
}

// ApplyEvent 将事件分发到匹配的处理方法。
//
// 仅做状态变更分发：不盖章序号、不触碰未提交缓冲与序号计数。
// 找不到处理方法不是错误，直接跳过；处理方法返回的错误原样上抛。
func (a *AggregateRoot[T]) ApplyEvent(evt domain.IDomainEvent) error {
	if evt == nil {
		return nil
	}
	return a.dispatcher.dispatch(evt)
}

// PublishEvent 发布新事件。
//
// 依次执行：
//  1. 盖章序号 currentEventID+1；
//  2. 推进序号计数；
//  3. 追加到未提交缓冲末尾（保持发布顺序）；
//  4. 委托 ApplyEvent 变更内存状态。
//
// 从序号 C 开始连续发布 N 个事件，事件分别携带序号 C+1..C+N，
// 且缓冲中恰好按发布顺序持有这 N 个事件。
func (a *AggregateRoot[T]) PublishEvent(evt domain.IDomainEvent) error {
	if evt == nil {
		return nil
	}
	next := a.currentEventID + 1
	evt.SetEventID(next)
	a.currentEventID = next
	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	return a.ApplyEvent(evt)
}

// LoadFromHistory 按原始顺序重放历史事件。
//
// 每个事件经 ApplyEvent 分发后，序号计数推进到该事件已盖章的序号，
// 保证重放后的下一次 PublishEvent 从正确序号继续。
// 不触碰未提交缓冲；乱序输入由调用方负责避免，这里不做校验。
func (a *AggregateRoot[T]) LoadFromHistory(events []domain.IDomainEvent) error {
	for _, evt := range events {
		if evt == nil {
			continue
		}
		if err := a.ApplyEvent(evt); err != nil {
			return err
		}
		a.currentEventID = evt.GetEventID()
	}
	return nil
}

// GetUncommittedEvents 返回未提交事件的只读视图。
// 返回切片为副本，元素仍为原事件实例。
func (a *AggregateRoot[T]) GetUncommittedEvents() []domain.IDomainEvent {
	events := make([]domain.IDomainEvent, len(a.uncommittedEvents))
	copy(events, a.uncommittedEvents)
	return events
}

// CommitEvents 清空未提交缓冲，序号计数保持不变。
// 幂等：对空缓冲调用是无操作。
func (a *AggregateRoot[T]) CommitEvents() {
	a.uncommittedEvents = nil
}

// Validate 默认实现：留给具体聚合覆盖。
func (a *AggregateRoot[T]) Validate() error {
	return nil
}
