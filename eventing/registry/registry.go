// Package registry 提供领域事件类型注册表，用于从存储载荷重建强类型事件。
package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"chronicle/domain"
)

// EventFactory 事件工厂函数，返回一个可反序列化的空事件实例（指针）。
type EventFactory func() domain.IDomainEvent

// Registry 事件注册表
type Registry struct {
	eventTypes map[string]reflect.Type
	factories  map[string]EventFactory
	versions   map[string]int
	mutex      sync.RWMutex
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		eventTypes: make(map[string]reflect.Type),
		factories:  make(map[string]EventFactory),
		versions:   make(map[string]int),
	}
}

// Register 注册事件类型（模式版本 1）
func (r *Registry) Register(eventType string, factory EventFactory) error {
	return r.RegisterWithVersion(eventType, 1, factory)
}

// RegisterWithVersion 注册带模式版本的事件类型
func (r *Registry) RegisterWithVersion(eventType string, schemaVersion int, factory EventFactory) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("event factory cannot be nil for type %s", eventType)
	}
	if schemaVersion <= 0 {
		return fmt.Errorf("schema version must be greater than 0 for type %s", eventType)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.eventTypes[eventType]; exists {
		return fmt.Errorf("event type already registered: %s", eventType)
	}

	instance := factory()
	if instance == nil {
		return fmt.Errorf("event factory returned nil for type %s", eventType)
	}

	r.eventTypes[eventType] = reflect.TypeOf(instance)
	r.factories[eventType] = factory
	r.versions[eventType] = schemaVersion
	return nil
}

// MustRegister 注册事件类型（失败 panic）
func (r *Registry) MustRegister(eventType string, factory EventFactory) {
	if err := r.Register(eventType, factory); err != nil {
		panic(err)
	}
}

// Unregister 取消注册
func (r *Registry) Unregister(eventType string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.eventTypes, eventType)
	delete(r.factories, eventType)
	delete(r.versions, eventType)
}

// Deserialize 通过注册表反序列化事件数据
func (r *Registry) Deserialize(eventType string, data []byte) (domain.IDomainEvent, error) {
	r.mutex.RLock()
	factory, exists := r.factories[eventType]
	r.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	instance := factory()
	if err := json.Unmarshal(data, instance); err != nil {
		return nil, fmt.Errorf("failed to deserialize event %s: %w", eventType, err)
	}
	return instance, nil
}

// DeserializeFromMap 将 map 数据转换为强类型事件
func (r *Registry) DeserializeFromMap(eventType string, data map[string]any) (domain.IDomainEvent, error) {
	if data == nil {
		return nil, fmt.Errorf("event data map cannot be nil")
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event map for %s: %w", eventType, err)
	}
	return r.Deserialize(eventType, bytes)
}

// HasEvent 检查事件类型是否已注册
func (r *Registry) HasEvent(eventType string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, exists := r.eventTypes[eventType]
	return exists
}

// GetRegisteredTypes 获取所有已注册的事件类型
func (r *Registry) GetRegisteredTypes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	types := make([]string, 0, len(r.eventTypes))
	for eventType := range r.eventTypes {
		types = append(types, eventType)
	}
	return types
}

// GetSchemaVersion 获取事件类型的模式版本，未注册时按 1 处理
func (r *Registry) GetSchemaVersion(eventType string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if version, ok := r.versions[eventType]; ok && version > 0 {
		return version
	}
	return 1
}

var globalRegistry = NewRegistry()

// Global 返回全局注册表
func Global() *Registry { return globalRegistry }

// MustRegisterGlobal 注册到全局注册表（失败 panic）
func MustRegisterGlobal(eventType string, factory EventFactory) {
	globalRegistry.MustRegister(eventType, factory)
}
