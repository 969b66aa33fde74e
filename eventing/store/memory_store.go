package store

import (
	"context"
	"fmt"
	"sync"

	"chronicle/eventing"
)

// MemoryEventStore 内存实现，用于测试与示例。
type MemoryEventStore struct {
	mu sync.RWMutex
	// events 按聚合 ID 组织，每个聚合内按版本升序。
	events map[int64][]eventing.Event
}

// NewMemoryEventStore 创建内存事件存储
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events: make(map[int64][]eventing.Event),
	}
}

// AppendEvents 实现 IEventStore
func (m *MemoryEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	currentVersion := m.versionLocked(aggregateID)
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	for i, e := range events {
		if err := e.Validate(); err != nil {
			return eventing.NewInvalidEventErrorWithCause(e.GetID(), e.GetType(), "event validation failed", err)
		}
		expectedEventVersion := expectedVersion + uint64(i) + 1
		if e.GetVersion() != expectedEventVersion {
			return eventing.NewInvalidEventError(e.GetID(), e.GetType(),
				fmt.Sprintf("event version not sequential: expected %d, got %d", expectedEventVersion, e.GetVersion()))
		}
	}

	for _, e := range events {
		event, ok := e.(*eventing.Event)
		if !ok {
			return fmt.Errorf("unsupported event type: %T, expected *eventing.Event", e)
		}
		m.events[aggregateID] = append(m.events[aggregateID], *event)
	}
	return nil
}

// LoadEvents 实现 IEventStore
func (m *MemoryEventStore) LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	aggregateEvents := m.events[aggregateID]
	res := make([]eventing.Event, 0, len(aggregateEvents))
	for _, e := range aggregateEvents {
		if e.GetVersion() > afterVersion {
			res = append(res, e)
		}
	}
	return res, nil
}

// HasAggregate 实现 IEventStore
func (m *MemoryEventStore) HasAggregate(ctx context.Context, aggregateID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events, ok := m.events[aggregateID]
	return ok && len(events) > 0, nil
}

// GetAggregateVersion 实现 IEventStore
func (m *MemoryEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versionLocked(aggregateID), nil
}

func (m *MemoryEventStore) versionLocked(aggregateID int64) uint64 {
	events := m.events[aggregateID]
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].GetVersion()
}

// Ensure interface compliance.
var _ IEventStore = (*MemoryEventStore)(nil)
