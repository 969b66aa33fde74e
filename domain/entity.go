// Package domain 定义领域层的基础抽象：实体、聚合标识与领域事件。
package domain

// IObject 最基础的对象接口，所有实体的根接口。
type IObject[T comparable] interface {
	// GetID 返回对象的唯一标识
	GetID() T
}

// IEntity 实体接口，在 IObject 基础上增加版本概念。
// 对事件溯源聚合而言，版本号即最后一个已应用事件的序号。
type IEntity[T comparable] interface {
	IObject[T]

	// GetVersion 返回实体当前版本号
	GetVersion() int64
}

// IValidatable 可验证接口。
// 实现此接口的实体可以验证自身状态的有效性。
type IValidatable interface {
	// Validate 验证实体状态是否有效
	Validate() error
}

// IDomainEvent 领域事件接口。
//
// 领域层仅关注事件本身的语义：事件类型标识与事件序号。
// 序号（EventID）由聚合根在 PublishEvent 时盖章，新建事件应保持为 0；
// 传输信封与存储细节由 eventing 层负责。
type IDomainEvent interface {
	// EventType 返回领域事件类型标识。
	// 建议使用稳定的枚举字符串，便于路由与演进。
	EventType() string

	// GetEventID 返回事件在聚合内的序号，未发布时为 0。
	GetEventID() uint64

	// SetEventID 设置事件序号，仅应由聚合根的发布路径调用。
	SetEventID(id uint64)
}

// DomainEvent 领域事件基础实现，具体事件内嵌此结构并实现 EventType。
//
// 示例:
//
//	type AccountOpened struct {
//	    domain.DomainEvent
//	    Owner string
//	}
//
//	func (e *AccountOpened) EventType() string { return "AccountOpened" }
type DomainEvent struct {
	EventID uint64 `json:"event_id"`
}

// GetEventID 返回事件序号。
func (e *DomainEvent) GetEventID() uint64 { return e.EventID }

// SetEventID 设置事件序号。
func (e *DomainEvent) SetEventID(id uint64) { e.EventID = id }
