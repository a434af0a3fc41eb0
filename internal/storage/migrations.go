package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Conversation contexts, system messages and reschedule requests",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS conversation_contexts (
					phone TEXT PRIMARY KEY,
					paciente_id INTEGER DEFAULT 0,
					prontuario TEXT,
					status TEXT NOT NULL DEFAULT 'idle',
					failed_attempts INTEGER DEFAULT 0,
					last_confidence REAL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS system_messages (
					id TEXT NOT NULL,
					phone TEXT NOT NULL,
					consulta_id INTEGER NOT NULL,
					type TEXT NOT NULL,
					especialidade TEXT,
					medico TEXT,
					data_hora TEXT,
					sent_at DATETIME NOT NULL,
					responded INTEGER DEFAULT 0,
					responded_at DATETIME,
					PRIMARY KEY (phone, consulta_id),
					FOREIGN KEY (phone) REFERENCES conversation_contexts(phone)
				)`,
				`CREATE INDEX idx_system_messages_phone ON system_messages(phone)`,
				`CREATE INDEX idx_system_messages_responded ON system_messages(responded)`,

				`CREATE TABLE IF NOT EXISTS reschedule_requests (
					id TEXT NOT NULL,
					phone TEXT NOT NULL,
					original_consulta_id INTEGER NOT NULL,
					new_consulta_id INTEGER DEFAULT 0,
					especialidade TEXT,
					prontuario TEXT,
					nome_paciente TEXT,
					paciente_id INTEGER DEFAULT 0,
					source TEXT,
					status TEXT NOT NULL DEFAULT 'pending',
					created_at DATETIME NOT NULL,
					fulfilled_at DATETIME,
					PRIMARY KEY (phone, id),
					FOREIGN KEY (phone) REFERENCES conversation_contexts(phone)
				)`,
				`CREATE INDEX idx_reschedule_requests_phone ON reschedule_requests(phone)`,
				`CREATE INDEX idx_reschedule_requests_status ON reschedule_requests(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Badge events for the operator dashboard",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS badge_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					consulta_id INTEGER NOT NULL,
					phone TEXT NOT NULL,
					label TEXT NOT NULL,
					action TEXT,
					color TEXT NOT NULL,
					card TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					resolved INTEGER DEFAULT 0,
					resolved_at DATETIME
				)`,
				`CREATE INDEX idx_badge_events_consulta ON badge_events(consulta_id)`,
				`CREATE INDEX idx_badge_events_resolved ON badge_events(resolved)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Inbound audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS inbound_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					received_at DATETIME NOT NULL,
					phone TEXT NOT NULL,
					body TEXT,
					intent TEXT,
					method TEXT,
					confidence REAL DEFAULT 0,
					action TEXT NOT NULL,
					response TEXT,
					handled INTEGER DEFAULT 0
				)`,
				`CREATE INDEX idx_inbound_log_phone ON inbound_log(phone)`,
				`CREATE INDEX idx_inbound_log_received ON inbound_log(received_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
