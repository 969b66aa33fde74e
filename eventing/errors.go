package eventing

import "fmt"

// 错误代码
const (
	ErrCodeStoreFailed      = "STORE_FAILED"
	ErrCodeInvalidEvent     = "INVALID_EVENT"
	ErrCodeSerializePayload = "SERIALIZE_PAYLOAD_FAILED"
	ErrCodeDeserialize      = "DESERIALIZE_FAILED"
	ErrCodeUnknownEventType = "UNKNOWN_EVENT_TYPE"
)

// EventStoreError 事件存储错误基类
type EventStoreError struct {
	Code      string
	Message   string
	Cause     error
	EventID   string
	EventType string
}

func (e *EventStoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EventStoreError) Unwrap() error { return e.Cause }

// NewStoreFailedError 创建存储操作失败错误
func NewStoreFailedError(message string, cause error) *EventStoreError {
	return &EventStoreError{Code: ErrCodeStoreFailed, Message: message, Cause: cause}
}

// NewInvalidEventError 创建无效事件错误
func NewInvalidEventError(eventID, eventType, message string) *EventStoreError {
	return &EventStoreError{Code: ErrCodeInvalidEvent, Message: message, EventID: eventID, EventType: eventType}
}

// NewInvalidEventErrorWithCause 创建带原因的无效事件错误
func NewInvalidEventErrorWithCause(eventID, eventType, message string, cause error) *EventStoreError {
	return &EventStoreError{Code: ErrCodeInvalidEvent, Message: message, Cause: cause, EventID: eventID, EventType: eventType}
}

// ConcurrencyError 并发冲突错误
//
// 说明：
//   - ConcurrencyError 本身就是业务错误的最终形态，不再包裹下层错误，因此不实现 Unwrap；
//   - 调用方应通过 errors.As 或类型断言来识别并发冲突。
type ConcurrencyError struct {
	AggregateID     int64
	ExpectedVersion uint64
	ActualVersion   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: aggregate %d expected version %d, actual version %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

func NewConcurrencyError(aggregateID int64, expected, actual uint64) *ConcurrencyError {
	return &ConcurrencyError{AggregateID: aggregateID, ExpectedVersion: expected, ActualVersion: actual}
}

var (
	ErrAggregateNotFound = &EventStoreError{Code: "AGGREGATE_NOT_FOUND", Message: "aggregate not found"}
	ErrInvalidEvent      = &EventStoreError{Code: ErrCodeInvalidEvent, Message: "invalid event"}
	ErrStoreFailed       = &EventStoreError{Code: ErrCodeStoreFailed, Message: "event store operation failed"}
)
