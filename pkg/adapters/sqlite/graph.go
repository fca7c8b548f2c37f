// Package sqlite stores flows the way the CRM does: one row per flow and
// one row per node, with the node's author-time config as a JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/aretw0/ramal/internal/compiler"
	"github.com/aretw0/ramal/internal/dto"
	"github.com/aretw0/ramal/pkg/domain"
)

// Open opens a SQLite database with the modernc driver. An in-memory
// database is pinned to a single connection so every query sees it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// GraphStore implements ports.GraphStore, ports.SnapshotReader,
// ports.FlowLister and ports.GraphWriter on SQLite.
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore initializes the schema and returns a store.
func NewGraphStore(ctx context.Context, db *sql.DB) (*GraphStore, error) {
	s := &GraphStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *GraphStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS flows (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			start_node_id TEXT NOT NULL DEFAULT '',
			version       INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS nodes (
			flow_id      TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			id           TEXT NOT NULL,
			position     INTEGER NOT NULL,
			type         TEXT NOT NULL,
			next_node_id TEXT NOT NULL DEFAULT '',
			config       TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (flow_id, id)
		);`,
	)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetFlow returns the flow row.
func (s *GraphStore) GetFlow(ctx context.Context, flowID string) (*domain.FlowDefinition, error) {
	return getFlow(ctx, s.db, flowID)
}

// GetNodes loads and compiles the node rows of a flow in declaration order.
func (s *GraphStore) GetNodes(ctx context.Context, flowID string) ([]domain.Node, error) {
	if _, err := getFlow(ctx, s.db, flowID); err != nil {
		return nil, err
	}
	return getNodes(ctx, s.db, flowID)
}

// Snapshot reads the flow row and its nodes in one transaction, so a
// concurrent PutFlow is seen either entirely or not at all. The
// transaction only reads and is always rolled back.
func (s *GraphStore) Snapshot(ctx context.Context, flowID string) (*domain.FlowDefinition, []domain.Node, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin snapshot of %s: %w", flowID, err)
	}
	defer func() { _ = tx.Rollback() }()

	flow, err := getFlow(ctx, tx, flowID)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := getNodes(ctx, tx, flowID)
	if err != nil {
		return nil, nil, err
	}
	return flow, nodes, nil
}

func getFlow(ctx context.Context, q querier, flowID string) (*domain.FlowDefinition, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, status, start_node_id, version
		FROM flows
		WHERE id = ?`, flowID)

	var f domain.FlowDefinition
	if err := row.Scan(&f.ID, &f.Name, &f.Status, &f.StartNodeID, &f.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
		}
		return nil, fmt.Errorf("get flow %s: %w", flowID, err)
	}
	return &f, nil
}

func getNodes(ctx context.Context, q querier, flowID string) ([]domain.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, next_node_id, config
		FROM nodes
		WHERE flow_id = ?
		ORDER BY position`, flowID)
	if err != nil {
		return nil, fmt.Errorf("query nodes of %s: %w", flowID, err)
	}
	defer rows.Close()

	var records []dto.NodeRecord
	for rows.Next() {
		rec := dto.NodeRecord{FlowID: flowID}
		var config string
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.NextNodeID, &config); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(config), &rec.Config); err != nil {
			return nil, fmt.Errorf("node %s: decode config: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nodes, err := compiler.CompileAll(records)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}
	return nodes, nil
}

// ListFlows returns every flow ordered by ID.
func (s *GraphStore) ListFlows(ctx context.Context) ([]domain.FlowDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, start_node_id, version
		FROM flows
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	flows := []domain.FlowDefinition{}
	for rows.Next() {
		var f domain.FlowDefinition
		if err := rows.Scan(&f.ID, &f.Name, &f.Status, &f.StartNodeID, &f.Version); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// PutFlow replaces the flow and all of its nodes in one transaction.
func (s *GraphStore) PutFlow(ctx context.Context, flow domain.FlowDefinition, nodes []domain.Node) (err error) {
	if flow.ID == "" {
		return errors.New("flow id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flows (id, name, status, start_node_id, version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			start_node_id = excluded.start_node_id,
			version = excluded.version`,
		flow.ID, flow.Name, string(flow.Status), flow.StartNodeID, flow.Version)
	if err != nil {
		return fmt.Errorf("upsert flow %s: %w", flow.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE flow_id = ?`, flow.ID); err != nil {
		return fmt.Errorf("clear nodes of %s: %w", flow.ID, err)
	}

	for i, n := range nodes {
		rec := compiler.Record(n)
		config, merr := json.Marshal(rec.Config)
		if merr != nil {
			err = fmt.Errorf("node %s: encode config: %w", rec.ID, merr)
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (flow_id, id, position, type, next_node_id, config)
			VALUES (?, ?, ?, ?, ?, ?)`,
			flow.ID, rec.ID, i, rec.Type, rec.NextNodeID, string(config))
		if err != nil {
			return fmt.Errorf("insert node %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// SetStatus changes the publication status of a flow, e.g. to archive it.
func (s *GraphStore) SetStatus(ctx context.Context, flowID string, status domain.FlowStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid flow status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE flows SET status = ? WHERE id = ?`, string(status), flowID)
	if err != nil {
		return fmt.Errorf("set status of %s: %w", flowID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}
	return nil
}
