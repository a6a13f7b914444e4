package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// WriteAudit commits audit entries in one transaction.
func (s *SQLiteStore) WriteAudit(ctx context.Context, entries []domain.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO audit_log (audit_id, user_id, fragment_kind, sensitivity_level, decision, reason, handler_id, signal, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.ID, e.UserID, string(e.FragmentKind), int(e.Level), string(e.Decision),
				nullString(e.Reason), nullString(e.HandlerID), nullString(string(e.Signal)), e.Timestamp.UnixNano()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAudit returns the newest audit entries, optionally for one user.
func (s *SQLiteStore) ListAudit(ctx context.Context, userID string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT audit_id, user_id, fragment_kind, sensitivity_level, decision, reason, handler_id, signal, ts FROM audit_log`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY ts DESC, audit_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var kind, decision string
		var level int
		var reason, handlerID, signal sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &level, &decision, &reason, &handlerID, &signal, &ts); err != nil {
			return nil, err
		}
		e.FragmentKind = domain.FieldKind(kind)
		e.Level = domain.SensitivityLevel(level)
		e.Decision = domain.FilterDecision(decision)
		e.Reason = reason.String
		e.HandlerID = handlerID.String
		e.Signal = domain.ErrorKind(signal.String)
		e.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
