// Package sql 基于 database/sql 的事件存储实现。
//
// 按 sqlite 语法编写（配合 modernc.org/sqlite 驱动），
// 驱动由调用方空导入注册：
//
//	import _ "modernc.org/sqlite"
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chronicle/eventing"
	"chronicle/eventing/store"
	"chronicle/logging"
	"chronicle/messaging"
)

const defaultTableName = "event_store"

// SQLEventStore 事件存储的 SQL 实现
type SQLEventStore struct {
	db        *sql.DB
	tableName string
	logger    logging.Logger
}

// NewSQLEventStore 创建 SQL 事件存储
func NewSQLEventStore(db *sql.DB, tableName string) *SQLEventStore {
	if tableName == "" {
		tableName = defaultTableName
	}
	return &SQLEventStore{
		db:        db,
		tableName: tableName,
		logger:    logging.GetLogger().WithFields(logging.String("component", "eventing.store.sql")),
	}
}

// CreateSchema 建表（幂等，用于测试与初始化脚本）
func (s *SQLEventStore) CreateSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		aggregate_id INTEGER NOT NULL,
		aggregate_type TEXT NOT NULL,
		version INTEGER NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		timestamp TIMESTAMP NOT NULL,
		payload TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		UNIQUE (aggregate_id, version)
	)`, s.tableName)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return eventing.NewStoreFailedError("create schema failed", err)
	}
	return nil
}

// AppendEvents 实现 store.IEventStore。
// 版本检查与插入在同一事务内完成；UNIQUE(aggregate_id, version)
// 约束兜底并发写入。
func (s *SQLEventStore) AppendEvents(ctx context.Context, aggregateID int64, events []eventing.IStorableEvent, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eventing.NewStoreFailedError("begin transaction failed", err)
	}
	defer tx.Rollback()

	currentVersion, err := s.currentVersion(ctx, tx, aggregateID)
	if err != nil {
		return eventing.NewStoreFailedError("query current version failed", err)
	}
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	insert := fmt.Sprintf(`INSERT INTO %s
		(id, type, aggregate_id, aggregate_type, version, schema_version, timestamp, payload, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName)

	for idx, evt := range events {
		expectedEventVersion := expectedVersion + uint64(idx) + 1
		if evt.GetVersion() != expectedEventVersion {
			return eventing.NewInvalidEventError(evt.GetID(), evt.GetType(),
				fmt.Sprintf("event version mismatch: expected %d, got %d", expectedEventVersion, evt.GetVersion()))
		}
		if err := evt.Validate(); err != nil {
			return eventing.NewInvalidEventErrorWithCause(evt.GetID(), evt.GetType(), "event validation failed", err)
		}

		payloadJSON, err := json.Marshal(evt.GetPayload())
		if err != nil {
			return &eventing.EventStoreError{Code: eventing.ErrCodeSerializePayload, Message: "serialize payload failed", Cause: err, EventID: evt.GetID(), EventType: evt.GetType()}
		}
		metadataJSON, err := json.Marshal(evt.GetMetadata())
		if err != nil {
			return &eventing.EventStoreError{Code: eventing.ErrCodeSerializePayload, Message: "serialize metadata failed", Cause: err, EventID: evt.GetID(), EventType: evt.GetType()}
		}

		_, err = tx.ExecContext(ctx, insert,
			evt.GetID(), evt.GetType(), aggregateID, evt.GetAggregateType(),
			evt.GetVersion(), evt.GetSchemaVersion(), evt.GetTimestamp(),
			string(payloadJSON), string(metadataJSON))
		if err != nil {
			return eventing.NewStoreFailedError("insert event failed", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return eventing.NewStoreFailedError("commit transaction failed", err)
	}
	s.logger.Debug(ctx, "events appended",
		logging.Int64("aggregate_id", aggregateID),
		logging.Int("event_count", len(events)))
	return nil
}

// LoadEvents 实现 store.IEventStore。载荷以 json.RawMessage 形式返回。
func (s *SQLEventStore) LoadEvents(ctx context.Context, aggregateID int64, afterVersion uint64) ([]eventing.Event, error) {
	query := fmt.Sprintf(`SELECT id, type, aggregate_type, version, schema_version, timestamp, payload, metadata
		FROM %s WHERE aggregate_id = ? AND version > ? ORDER BY version ASC`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query, aggregateID, afterVersion)
	if err != nil {
		return nil, eventing.NewStoreFailedError("query events failed", err)
	}
	defer rows.Close()

	var events []eventing.Event
	for rows.Next() {
		var (
			id, typ      string
			aggType      string
			version      uint64
			schema       int
			ts           time.Time
			payloadJSON  string
			metadataJSON string
		)
		if err := rows.Scan(&id, &typ, &aggType, &version, &schema, &ts, &payloadJSON, &metadataJSON); err != nil {
			return nil, eventing.NewStoreFailedError("scan event row failed", err)
		}

		metadata := make(map[string]any)
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, &eventing.EventStoreError{Code: eventing.ErrCodeDeserialize, Message: "deserialize metadata failed", Cause: err, EventID: id, EventType: typ}
			}
		}

		events = append(events, eventing.Event{
			Message: messaging.Message{
				ID:        id,
				Type:      typ,
				Timestamp: ts,
				Payload:   json.RawMessage(payloadJSON),
				Metadata:  metadata,
			},
			AggregateID:   aggregateID,
			AggregateType: aggType,
			Version:       version,
			SchemaVersion: schema,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eventing.NewStoreFailedError("iterate event rows failed", err)
	}
	return events, nil
}

// HasAggregate 实现 store.IEventStore
func (s *SQLEventStore) HasAggregate(ctx context.Context, aggregateID int64) (bool, error) {
	version, err := s.GetAggregateVersion(ctx, aggregateID)
	if err != nil {
		return false, err
	}
	return version > 0, nil
}

// GetAggregateVersion 实现 store.IEventStore
func (s *SQLEventStore) GetAggregateVersion(ctx context.Context, aggregateID int64) (uint64, error) {
	version, err := s.currentVersion(ctx, s.db, aggregateID)
	if err != nil {
		return 0, eventing.NewStoreFailedError("query aggregate version failed", err)
	}
	return version, nil
}

// querier 兼容 *sql.DB 与 *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLEventStore) currentVersion(ctx context.Context, q querier, aggregateID int64) (uint64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE aggregate_id = ?", s.tableName)
	var version uint64
	if err := q.QueryRowContext(ctx, query, aggregateID).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// Ensure interface compliance.
var _ store.IEventStore = (*SQLEventStore)(nil)
