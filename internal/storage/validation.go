// Package storage provides the SQLite persistence layer for conversation
// contexts, badge events and the inbound audit log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hmasp-digital/triagem/internal/conversation"
	"github.com/hmasp-digital/triagem/internal/inbound"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidRecord   = errors.New("invalid audit record")
	ErrInvalidBadge    = errors.New("invalid badge event")
	ErrInvalidConvCtx  = errors.New("invalid conversation context")
	ErrBadgeTransition = errors.New("badge transition not allowed")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateConversation(c *conversation.Context) error {
	if c == nil {
		return fmt.Errorf("%w: conversation context", ErrNilParameter)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: missing phone", ErrInvalidConvCtx)
	}
	return nil
}

func validateAuditRecord(rec *inbound.AuditRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: audit record", ErrNilParameter)
	}
	if rec.Phone == "" {
		return fmt.Errorf("%w: missing phone", ErrInvalidRecord)
	}
	if rec.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: missing received timestamp", ErrInvalidRecord)
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidRecord)
	}
	return nil
}

func validateBadgeEvent(event *BadgeEvent) error {
	if event == nil {
		return fmt.Errorf("%w: badge event", ErrNilParameter)
	}
	if event.ConsultaID == 0 {
		return fmt.Errorf("%w: missing consulta ID", ErrInvalidBadge)
	}
	if strings.TrimSpace(event.Phone) == "" {
		return fmt.Errorf("%w: missing phone", ErrInvalidBadge)
	}
	if strings.TrimSpace(event.Badge.Label) == "" {
		return fmt.Errorf("%w: missing badge label", ErrInvalidBadge)
	}
	return nil
}
