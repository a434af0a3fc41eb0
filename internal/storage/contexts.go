package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hmasp-digital/triagem/internal/common"
	"github.com/hmasp-digital/triagem/internal/conversation"
	"github.com/hmasp-digital/triagem/internal/model"
)

// SaveContext persists one conversation context, replacing any previous
// snapshot of the same phone (system messages and reschedule requests
// included).
func (s *SQLiteStorage) SaveContext(ctx context.Context, c *conversation.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateConversation(c); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_contexts
			(phone, paciente_id, prontuario, status, failed_attempts, last_confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			paciente_id = excluded.paciente_id,
			prontuario = excluded.prontuario,
			status = excluded.status,
			failed_attempts = excluded.failed_attempts,
			last_confidence = excluded.last_confidence,
			updated_at = excluded.updated_at`,
		c.Phone, c.PacienteID, c.Prontuario, string(c.Status),
		c.FailedAttempts, c.LastConfidence, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save conversation context: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM system_messages WHERE phone = ?`, c.Phone); err != nil {
		return fmt.Errorf("failed to clear system messages: %w", err)
	}
	for _, msg := range contextMessages(c) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO system_messages
				(id, phone, consulta_id, type, especialidade, medico, data_hora, sent_at, responded, responded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, c.Phone, msg.ConsultaID, string(msg.Type),
			msg.Especialidade, msg.Medico, msg.DataHora,
			msg.SentAt, msg.Responded, msg.RespondedAt)
		if err != nil {
			return fmt.Errorf("failed to save system message %d: %w", msg.ConsultaID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM reschedule_requests WHERE phone = ?`, c.Phone); err != nil {
		return fmt.Errorf("failed to clear reschedule requests: %w", err)
	}
	for _, req := range c.Reschedules {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reschedule_requests
				(id, phone, original_consulta_id, new_consulta_id, especialidade,
				 prontuario, nome_paciente, paciente_id, source, status, created_at, fulfilled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, c.Phone, req.OriginalConsultaID, req.NewConsultaID,
			req.Especialidade, req.Prontuario, req.NomePaciente, req.PacienteID,
			req.Source, string(req.Status), req.CreatedAt, req.FulfilledAt)
		if err != nil {
			return fmt.Errorf("failed to save reschedule request %s: %w", req.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation context: %w", err)
	}
	return nil
}

// contextMessages flattens a context's notifications for persistence: all
// pending plus the last one. In the conversation model absence from Pending
// is what makes a notification settled, so the last message is stored as
// responded when it is no longer pending; otherwise a reload would
// resurrect it and trip the ambiguity check.
func contextMessages(c *conversation.Context) []model.SystemMessage {
	msgs := make([]model.SystemMessage, 0, len(c.Pending)+1)
	seen := make(map[int64]bool, len(c.Pending)+1)
	for _, m := range c.Pending {
		msgs = append(msgs, m)
		seen[m.ConsultaID] = true
	}
	if last := c.LastSystemMessage; last != nil && !seen[last.ConsultaID] {
		settled := *last
		settled.Responded = true
		msgs = append(msgs, settled)
	}
	return msgs
}

// GetContext loads one conversation context by E.164 phone. Returns
// common.ErrContextNotFound when the phone has no stored conversation.
func (s *SQLiteStorage) GetContext(ctx context.Context, phone string) (*conversation.Context, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(phone, "phone"); err != nil {
		return nil, err
	}

	c := &conversation.Context{}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT phone, paciente_id, prontuario, status, failed_attempts, last_confidence, created_at, updated_at
		FROM conversation_contexts WHERE phone = ?`, phone).
		Scan(&c.Phone, &c.PacienteID, &c.Prontuario, &status,
			&c.FailedAttempts, &c.LastConfidence, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", common.ErrContextNotFound, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation context: %w", err)
	}
	c.Status = conversation.Status(status)

	if err := s.loadMessages(ctx, c); err != nil {
		return nil, err
	}
	if err := s.loadReschedules(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStorage) loadMessages(ctx context.Context, c *conversation.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, consulta_id, type, especialidade, medico, data_hora, sent_at, responded, responded_at
		FROM system_messages WHERE phone = ? ORDER BY sent_at`, c.Phone)
	if err != nil {
		return fmt.Errorf("failed to load system messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var last *model.SystemMessage
	var lastSent time.Time
	for rows.Next() {
		var msg model.SystemMessage
		var typ string
		if err := rows.Scan(&msg.ID, &msg.ConsultaID, &typ, &msg.Especialidade,
			&msg.Medico, &msg.DataHora, &msg.SentAt, &msg.Responded, &msg.RespondedAt); err != nil {
			return fmt.Errorf("failed to scan system message: %w", err)
		}
		msg.Type = model.ContextType(typ)

		if !msg.Responded {
			c.Pending = append(c.Pending, msg)
		}
		if last == nil || msg.SentAt.After(lastSent) {
			copied := msg
			last = &copied
			lastSent = msg.SentAt
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate system messages: %w", err)
	}
	c.LastSystemMessage = last
	return nil
}

func (s *SQLiteStorage) loadReschedules(ctx context.Context, c *conversation.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_consulta_id, new_consulta_id, especialidade,
		       prontuario, nome_paciente, paciente_id, source, status, created_at, fulfilled_at
		FROM reschedule_requests WHERE phone = ? ORDER BY created_at`, c.Phone)
	if err != nil {
		return fmt.Errorf("failed to load reschedule requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var req conversation.RescheduleRequest
		var status string
		if err := rows.Scan(&req.ID, &req.OriginalConsultaID, &req.NewConsultaID,
			&req.Especialidade, &req.Prontuario, &req.NomePaciente, &req.PacienteID,
			&req.Source, &status, &req.CreatedAt, &req.FulfilledAt); err != nil {
			return fmt.Errorf("failed to scan reschedule request: %w", err)
		}
		req.Status = conversation.RescheduleStatus(status)
		c.Reschedules = append(c.Reschedules, req)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate reschedule requests: %w", err)
	}
	return nil
}

// LoadContexts loads every stored conversation, for rebuilding the in-memory
// store at startup.
func (s *SQLiteStorage) LoadContexts(ctx context.Context) ([]*conversation.Context, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT phone FROM conversation_contexts ORDER BY phone`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation contexts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("failed to scan phone: %w", err)
		}
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation contexts: %w", err)
	}

	contexts := make([]*conversation.Context, 0, len(phones))
	for _, phone := range phones {
		c, err := s.GetContext(ctx, phone)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, nil
}

// DeleteContext removes a conversation and its dependent rows. Deleting a
// phone that was never stored is not an error.
func (s *SQLiteStorage) DeleteContext(ctx context.Context, phone string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(phone, "phone"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, query := range []string{
		`DELETE FROM system_messages WHERE phone = ?`,
		`DELETE FROM reschedule_requests WHERE phone = ?`,
		`DELETE FROM conversation_contexts WHERE phone = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, phone); err != nil {
			return fmt.Errorf("failed to delete conversation context: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}
