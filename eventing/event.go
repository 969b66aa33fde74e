// Package eventing 定义事件传输信封与存储抽象。
//
// 领域层产生的 domain.IDomainEvent 只携带业务语义与聚合内序号，
// 仓储协作方在持久化前将其包进 Event 信封：补充聚合标识、
// 聚合类型、全局唯一消息 ID 与时间戳，供存储与总线使用。
package eventing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"chronicle/messaging"
)

// IEvent 基础事件接口（用于事件传输/路由）。
// 包含事件分发的最小必要信息。
type IEvent interface {
	messaging.IMessage

	// 聚合信息（用于路由和关联）
	GetAggregateID() int64
	GetAggregateType() string
	GetVersion() uint64
}

// IStorableEvent 扩展事件接口（用于事件持久化）。
type IStorableEvent interface {
	IEvent

	GetSchemaVersion() int
	SetAggregateType(string)
	Validate() error
}

// Event 事件信封实现，同时实现 IEvent 与 IStorableEvent。
//
// Version 即被包裹领域事件在聚合内的序号（由聚合根盖章），
// 存储层以它做乐观并发检查。
type Event struct {
	messaging.Message
	AggregateID   int64  `json:"aggregate_id"`
	AggregateType string `json:"aggregate_type"`
	Version       uint64 `json:"version"`
	SchemaVersion int    `json:"schema_version"`
}

// 基础接口实现
func (e *Event) GetAggregateID() int64    { return e.AggregateID }
func (e *Event) GetAggregateType() string { return e.AggregateType }
func (e *Event) GetVersion() uint64       { return e.Version }

// GetSchemaVersion 返回事件模式版本，未设置时按 1 处理。
func (e *Event) GetSchemaVersion() int {
	if e.SchemaVersion <= 0 {
		return 1
	}
	return e.SchemaVersion
}

func (e *Event) SetAggregateType(t string) { e.AggregateType = t }

// Validate 校验信封的存储前置条件。
func (e *Event) Validate() error {
	if e.GetID() == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if e.AggregateID <= 0 {
		return fmt.Errorf("aggregate id must be positive")
	}
	if e.AggregateType == "" {
		return fmt.Errorf("aggregate type cannot be empty")
	}
	if e.GetType() == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if e.Version == 0 {
		return fmt.Errorf("event version must be positive")
	}
	return nil
}

// NewEvent 创建事件信封。
func NewEvent(aggregateID int64, aggregateType, eventType string, version uint64, payload any, schemaVersion ...int) *Event {
	sVersion := 1
	if len(schemaVersion) > 0 && schemaVersion[0] > 0 {
		sVersion = schemaVersion[0]
	}
	return &Event{
		Message: messaging.Message{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now(),
			Payload:   payload,
			Metadata:  make(map[string]any),
		},
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		SchemaVersion: sVersion,
	}
}

// Ensure interface compliance.
var _ IStorableEvent = (*Event)(nil)
