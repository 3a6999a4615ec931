package postgres

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
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type PgEdgeEventStore struct {
	db           *pgxpool.Pool
	seqIDCeiling int64
}

func NewPgEdgeEventStore(databaseURL string, seqIDCeiling int64) (*PgEdgeEventStore, error) {
	if seqIDCeiling <= 0 {
		seqIDCeiling = store.DefaultSeqIDCeiling
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver %w", err)
	}
	migrationDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", migrationDriver, "edge-sync", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate migrations %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("failed to run migrations %w", err)
	}

	pgxPool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New(%v): %w", databaseURL, err)
	}
	return &PgEdgeEventStore{db: pgxPool, seqIDCeiling: seqIDCeiling}, nil
}

func (s *PgEdgeEventStore) Save(ctx context.Context, event *events.EdgeEvent) (int64, error) {
	if event == nil {
		return 0, store.ErrEmptyEvent
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel: pgx.Serializable,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(context.Background())

	// advance the per-edge sequence counter, wrapping at the ceiling
	var newSeqID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO edge_event_seq (tenant_id, edge_id, seq_id) VALUES ($1, $2, 1)
		 ON CONFLICT (tenant_id, edge_id) DO UPDATE SET
		 seq_id = CASE WHEN edge_event_seq.seq_id >= $3 THEN 1 ELSE edge_event_seq.seq_id + 1 END
		 RETURNING seq_id`,
		event.TenantID, event.EdgeID, s.seqIDCeiling).Scan(&newSeqID)
	if err != nil {
		return 0, fmt.Errorf("failed to advance edge seq counter: %w", err)
	}

	createdTime := event.CreatedTime
	if createdTime == 0 {
		createdTime = time.Now().UnixMilli()
	}
	var entityID interface{}
	if event.EntityID != uuid.Nil {
		entityID = event.EntityID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO edge_events (tenant_id, edge_id, seq_id, event_type, event_action, entity_id, body, created_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, edge_id, seq_id) DO UPDATE SET
		 event_type=EXCLUDED.event_type, event_action=EXCLUDED.event_action,
		 entity_id=EXCLUDED.entity_id, body=EXCLUDED.body, created_time=EXCLUDED.created_time`,
		event.TenantID, event.EdgeID, newSeqID, string(event.Type), string(event.Action), entityID, event.Body, createdTime)
	if err != nil {
		return 0, fmt.Errorf("failed to insert edge event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	event.SeqID = newSeqID
	event.CreatedTime = createdTime
	return newSeqID, nil
}

func (s *PgEdgeEventStore) FindEdgeEvents(ctx context.Context, tenantID, edgeID uuid.UUID, seqIDStart, seqIDEnd int64, link domain.TimePageLink) (domain.PageData[events.EdgeEvent], error) {
	where := `tenant_id = $1 AND edge_id = $2 AND seq_id >= $3 AND ($4 = 0 OR seq_id <= $4)
		 AND created_time >= $5 AND ($6 = 0 OR created_time <= $6)`
	args := []interface{}{tenantID, edgeID, seqIDStart, seqIDEnd, link.StartTime, link.EndTime}

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM edge_events WHERE "+where, args...).Scan(&total); err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to count edge events: %w", err)
	}

	rows, err := s.db.Query(ctx,
		"SELECT seq_id, event_type, event_action, entity_id, body, created_time FROM edge_events WHERE "+where+
			" ORDER BY seq_id ASC LIMIT $7 OFFSET $8",
		append(args, link.PageSize, link.Page*link.PageSize)...)
	if err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to query edge events: %w", err)
	}
	defer rows.Close()

	data := make([]events.EdgeEvent, 0)
	for rows.Next() {
		event := events.EdgeEvent{TenantID: tenantID, EdgeID: edgeID}
		var eventType, eventAction string
		var entityID *uuid.UUID
		if err := rows.Scan(&event.SeqID, &eventType, &eventAction, &entityID, &event.Body, &event.CreatedTime); err != nil {
			return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to scan edge event: %w", err)
		}
		event.Type = events.EventType(eventType)
		event.Action = events.ActionType(eventAction)
		if entityID != nil {
			event.EntityID = *entityID
		}
		data = append(data, event)
	}
	if err := rows.Err(); err != nil {
		return domain.EmptyPage[events.EdgeEvent](), fmt.Errorf("failed to iterate edge events: %w", err)
	}
	return store.PageOf(data, link.PageLink, total), nil
}
