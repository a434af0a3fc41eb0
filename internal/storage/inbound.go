package storage

import (
	"context"
	"fmt"

	"github.com/hmasp-digital/triagem/internal/inbound"
	"github.com/hmasp-digital/triagem/internal/model"
)

// RecordInbound appends one processed reply to the audit log. It implements
// inbound.Auditor.
func (s *SQLiteStorage) RecordInbound(ctx context.Context, rec inbound.AuditRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditRecord(&rec); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbound_log
			(received_at, phone, body, intent, method, confidence, action, response, handled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ReceivedAt, rec.Phone, rec.Body, string(rec.Intent), string(rec.Method),
		rec.Confidence, string(rec.Action), rec.Response, rec.Handled)
	if err != nil {
		return fmt.Errorf("failed to record inbound message: %w", err)
	}
	return nil
}

// RecentInbound returns the newest audit entries for a phone, most recent
// first, capped at limit.
func (s *SQLiteStorage) RecentInbound(ctx context.Context, phone string, limit int) ([]inbound.AuditRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(phone, "phone"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT received_at, phone, body, intent, method, confidence, action, response, handled
		FROM inbound_log WHERE phone = ?
		ORDER BY received_at DESC, id DESC LIMIT ?`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []inbound.AuditRecord
	for rows.Next() {
		var rec inbound.AuditRecord
		var intent, method, action string
		if err := rows.Scan(&rec.ReceivedAt, &rec.Phone, &rec.Body,
			&intent, &method, &rec.Confidence, &action, &rec.Response, &rec.Handled); err != nil {
			return nil, fmt.Errorf("failed to scan inbound record: %w", err)
		}
		rec.Intent = model.Intent(intent)
		rec.Method = model.Method(method)
		rec.Action = inbound.Action(action)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inbound log: %w", err)
	}
	return records, nil
}
