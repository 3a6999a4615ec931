package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/store"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type SQLiteEdgeEventStore struct {
	db           *sql.DB
	seqIDCeiling int64
}

func NewSQLiteEdgeEventStore(file string, seqIDCeiling int64) (*SQLiteEdgeEventStore, error) {
	if seqIDCeiling <= 0 {
		seqIDCeiling = store.DefaultSeqIDCeiling
	}
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}
	migrationDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", migrationDriver, file, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate migrations %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to run migrations %w", err)
	}
	return &SQLiteEdgeEventStore{db: db, seqIDCeiling: seqIDCeiling}, nil
}

func (s *SQLiteEdgeEventStore) Save(ctx context.Context, event *events.EdgeEvent) (int64, error) {
	if event == nil {
		return 0, store.ErrEmptyEvent
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// advance the per-edge sequence counter, wrapping at the ceiling
	var newSeqID int64
	err = tx.QueryRow("SELECT seq_id FROM edge_event_seq WHERE tenant_id = ? AND edge_id = ?",
		event.TenantID.String(), event.EdgeID.String()).Scan(&newSeqID)
	if err == sql.ErrNoRows {
		newSeqID = 1
		if _, err := tx.Exec("INSERT INTO edge_event_seq (tenant_id, edge_id, seq_id) VALUES (?, ?, ?)",
			event.TenantID.String(), event.EdgeID.String(), newSeqID); err != nil {
			return 0, fmt.Errorf("failed to insert edge seq counter: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to get edge seq counter: %w", err)
	} else {
		if newSeqID >= s.seqIDCeiling {
			newSeqID = 1
		} else {
			newSeqID++
		}
		if _, err := tx.Exec("UPDATE edge_event_seq SET seq_id = ? WHERE tenant_id = ? AND edge_id = ?",
			newSeqID, event.TenantID.String(), event.EdgeID.String()); err != nil {
			return 0, fmt.Errorf("failed to update edge seq counter: %w", err)
		}
	}

	createdTime := event.CreatedTime
	if createdTime == 0 {
		createdTime = time.Now().UnixMilli()
	}
	var entityID interface{}
	if event.EntityID != uuid.Nil {
		entityID = event.EntityID.String()
	}
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO edge_events (tenant_id, edge_id, seq_id, event_type, event_action, entity_id, body, created_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		event.TenantID.String(), event.EdgeID.String(), newSeqID, string(event.Type), string(event.Action), entityID, event.Body, createdTime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert edge event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	event.SeqID = newSeqID
	event.CreatedTime = createdTime
	return newSeqID, nil
}

func (s *SQLiteEdgeEventStore) FindEdgeEvents(ctx context.Context, tenantID, edgeID uuid.UUID, seqIDStart, seqIDEnd int64, link domain.TimePageLink) (domain.PageData[events.EdgeEvent], error) {
	where := "tenant_id = ? AND edge_id = ? AND seq_id >= ? AND (? = 0 OR seq_id <= ?) AND created_time >= ? AND (? = 0 OR created_time <= ?)"
	args := []interface{}{
		tenantID.String(), edgeID.String(),
		seqIDStart, seqIDEnd, seqIDEnd,
		link.StartTime, link.EndTime, link.EndTime,
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edge_events WHERE "+where, args...).Scan(&total); err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to count edge events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq_id, event_type, event_action, entity_id, body, created_time FROM edge_events WHERE "+where+
			" ORDER BY seq_id ASC LIMIT ? OFFSET ?",
		append(args, link.PageSize, link.Page*link.PageSize)...)
	if err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to query edge events: %w", err)
	}
	defer rows.Close()

	data := make([]events.EdgeEvent, 0)
	for rows.Next() {
		event := events.EdgeEvent{TenantID: tenantID, EdgeID: edgeID}
		var entityID sql.NullString
		if err := rows.Scan(&event.SeqID, &event.Type, &event.Action, &entityID, &event.Body, &event.CreatedTime); err != nil {
			return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to scan edge event: %w", err)
		}
		if entityID.Valid {
			id, err := uuid.Parse(entityID.String)
			if err != nil {
				return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to parse entity id: %w", err)
			}
			event.EntityID = id
		}
		data = append(data, event)
	}
	if err := rows.Err(); err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to iterate edge events: %w", err)
	}
	return store.PageOf(data, link.PageLink, total), nil
}
