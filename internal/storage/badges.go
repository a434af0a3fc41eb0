package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hmasp-digital/triagem/internal/badge"
	"github.com/hmasp-digital/triagem/internal/common"
)

// BadgeEvent is one persisted badge on an appointment. Open events are the
// operator's work queue; resolving one records the follow-up badge.
type BadgeEvent struct {
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Phone      string
	Badge      badge.Badge
	Card       badge.Card
	ID         int64
	ConsultaID int64
	Resolved   bool
}

// SaveBadgeEvent stores a new badge event and returns it with the assigned ID.
func (s *SQLiteStorage) SaveBadgeEvent(ctx context.Context, event BadgeEvent) (BadgeEvent, error) {
	if err := validateContext(ctx); err != nil {
		return BadgeEvent{}, err
	}
	if err := validateBadgeEvent(&event); err != nil {
		return BadgeEvent{}, err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO badge_events (consulta_id, phone, label, action, color, card, created_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		event.ConsultaID, event.Phone, event.Badge.Label, event.Badge.Action,
		string(event.Badge.Color), string(event.Card), event.CreatedAt)
	if err != nil {
		return BadgeEvent{}, fmt.Errorf("failed to save badge event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return BadgeEvent{}, fmt.Errorf("failed to get badge event ID: %w", err)
	}
	event.ID = id
	return event, nil
}

// ResolveBadge closes an open badge event, recording the follow-up badge
// (e.g. Desmarcar resolved into Desmarcada). The transition must be one the
// badge rules allow.
func (s *SQLiteStorage) ResolveBadge(ctx context.Context, id int64, next badge.Badge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	event, err := s.getBadgeEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.Resolved {
		return fmt.Errorf("%w: badge event %d already resolved", ErrBadgeTransition, id)
	}
	if !badge.CanTransition(&event.Badge, next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadgeTransition, event.Badge.Label, next.Label)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		UPDATE badge_events
		SET label = ?, action = ?, color = ?, resolved = 1, resolved_at = ?
		WHERE id = ?`,
		next.Label, next.Action, string(next.Color), now, id)
	if err != nil {
		return fmt.Errorf("failed to resolve badge event: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) getBadgeEvent(ctx context.Context, id int64) (*BadgeEvent, error) {
	var event BadgeEvent
	var color string
	var card string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, consulta_id, phone, label, action, color, card, created_at, resolved, resolved_at
		FROM badge_events WHERE id = ?`, id).
		Scan(&event.ID, &event.ConsultaID, &event.Phone, &event.Badge.Label,
			&event.Badge.Action, &color, &card, &event.CreatedAt,
			&event.Resolved, &event.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: badge event %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load badge event: %w", err)
	}
	event.Badge.Color = badge.Color(color)
	event.Card = badge.Card(card)
	return &event, nil
}

// OpenBadges lists unresolved badge events, oldest first.
func (s *SQLiteStorage) OpenBadges(ctx context.Context) ([]BadgeEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, consulta_id, phone, label, action, color, card, created_at, resolved, resolved_at
		FROM badge_events WHERE resolved = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list open badges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []BadgeEvent
	for rows.Next() {
		var event BadgeEvent
		var color, card string
		if err := rows.Scan(&event.ID, &event.ConsultaID, &event.Phone,
			&event.Badge.Label, &event.Badge.Action, &color, &card,
			&event.CreatedAt, &event.Resolved, &event.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge event: %w", err)
		}
		event.Badge.Color = badge.Color(color)
		event.Card = badge.Card(card)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate badge events: %w", err)
	}
	return events, nil
}
