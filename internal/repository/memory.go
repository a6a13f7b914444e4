package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

const memoryColumns = `record_id, namespace, kind, dedup_key, entity, predicate, fact, confidence, observed_at, embedding, status, superseded_by`

// StageMemory inserts candidate records. Staged records are invisible to retrieval
// until a consolidation pass promotes them.
func (s *SQLiteStore) StageMemory(ctx context.Context, records []domain.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO memory_records (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			var embedding sql.NullString
			if len(r.Embedding) > 0 {
				b, _ := json.Marshal(r.Embedding)
				embedding = nullString(string(b))
			}
			status := r.Status
			if status == "" {
				status = domain.MemoryPending
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.Namespace, string(r.Kind), r.Key, r.Entity, r.Predicate, r.Fact,
				r.Confidence, r.ObservedAt.UnixNano(), embedding, string(status), nullString(r.SupersededBy)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMemory returns the records of a namespace in the given statuses, in staging order.
func (s *SQLiteStore) ListMemory(ctx context.Context, namespace string, statuses ...domain.MemoryStatus) ([]domain.MemoryRecord, error) {
	return listMemory(ctx, s.db, namespace, statuses...)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listMemory(ctx context.Context, q queryer, namespace string, statuses ...domain.MemoryStatus) ([]domain.MemoryRecord, error) {
	query := `SELECT ` + memoryColumns + ` FROM memory_records WHERE namespace = ?`
	args := []interface{}{namespace}
	if len(statuses) > 0 {
		query += ` AND status IN (`
		for i, st := range statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(st))
		}
		query += `)`
	}
	query += ` ORDER BY rowid ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.MemoryRecord{}
	for rows.Next() {
		var r domain.MemoryRecord
		var kind, status string
		var observed int64
		var embedding, supersededBy sql.NullString
		if err := rows.Scan(&r.ID, &r.Namespace, &kind, &r.Key, &r.Entity, &r.Predicate, &r.Fact,
			&r.Confidence, &observed, &embedding, &status, &supersededBy); err != nil {
			return nil, err
		}
		r.Kind = domain.MemoryKind(kind)
		r.Status = domain.MemoryStatus(status)
		r.ObservedAt = time.Unix(0, observed).UTC()
		r.SupersededBy = supersededBy.String
		if embedding.Valid {
			if err := json.Unmarshal([]byte(embedding.String), &r.Embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding of %s: %w", r.ID, err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ResolveFunc decides a consolidation pass. It receives the active and pending
// records of a namespace and returns the records whose state changed.
type ResolveFunc func(active, pending []domain.MemoryRecord) ([]domain.MemoryRecord, error)

// ConsolidateNamespace runs resolve and applies its changes in one transaction,
// so readers observe either the state before the pass or the state after it.
func (s *SQLiteStore) ConsolidateNamespace(ctx context.Context, namespace string, resolve ResolveFunc) (int, error) {
	var changed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		active, err := listMemory(ctx, tx, namespace, domain.MemoryActive)
		if err != nil {
			return err
		}
		pending, err := listMemory(ctx, tx, namespace, domain.MemoryPending)
		if err != nil {
			return err
		}

		updates, err := resolve(active, pending)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`UPDATE memory_records SET status = ?, superseded_by = ?, confidence = ?, observed_at = ? WHERE record_id = ? AND namespace = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range updates {
			res, err := stmt.ExecContext(ctx, string(r.Status), nullString(r.SupersededBy), r.Confidence, r.ObservedAt.UnixNano(), r.ID, namespace)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return fmt.Errorf("%w: record %s not in namespace %s", ErrConflict, r.ID, namespace)
			}
		}
		changed = len(updates)
		return nil
	})
	return changed, err
}
