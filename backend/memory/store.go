// Package memory persists completed quarantine sessions.
package memory

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/google/uuid"
)

// QuarantineRecord is a stored quarantine session.
type QuarantineRecord struct {
	ID uuid.UUID `json:"id"`
	quarantine.Record
	CreatedAt time.Time `json:"createdAt"`
}

// RecordFilter narrows ListQuarantineRecords. Empty fields match everything.
type RecordFilter struct {
	AgentID    string
	ToolCallID string
	Limit      int
}

type RecordReader interface {
	GetQuarantineRecord(ctx context.Context, id uuid.UUID) (*QuarantineRecord, error)
	ListQuarantineRecords(ctx context.Context, filter RecordFilter) ([]QuarantineRecord, error)
}

var (
	_ quarantine.Store = (*SQLiteStore)(nil)
	_ RecordReader     = (*SQLiteStore)(nil)
)

// Cipher seals the stored summary of a record. The record id is the
// associated data.
type Cipher interface {
	Encrypt(plaintext, associatedData []byte) ([]byte, error)
	Decrypt(ciphertext, associatedData []byte) ([]byte, error)
}

type SQLiteStore struct {
	db     *sql.DB
	cipher Cipher
	newID  func() uuid.UUID
	now    func() time.Time
}

type StoreOption func(*SQLiteStore)

// WithCipher encrypts summaries before they are written.
func WithCipher(cipher Cipher) StoreOption {
	return func(s *SQLiteStore) {
		s.cipher = cipher
	}
}

func NewSQLiteStore(path string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		db:    db,
		newID: uuid.New,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quarantine_records (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		tool_call_id TEXT NOT NULL,
		conversation TEXT NOT NULL,
		result TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		encrypted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quarantine_records_agent ON quarantine_records(agent_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_quarantine_records_tool_call ON quarantine_records(tool_call_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.ensureColumn("encrypted", "INTEGER NOT NULL DEFAULT 0")
}

// ensureColumn adds a column to databases created before it existed.
func (s *SQLiteStore) ensureColumn(name, definition string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('quarantine_records')`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return err
		}
		if column == name {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_ = rows.Close()

	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE quarantine_records ADD COLUMN %s %s", name, definition))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveQuarantineRecord(ctx context.Context, record quarantine.Record) error {
	conversation, err := json.Marshal(record.Conversation)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	id := s.newID().String()
	result, encrypted, err := s.sealResult(id, record.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quarantine_records (id, agent_id, tool_call_id, conversation, result, outcome, encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, record.AgentID, record.ToolCallID, string(conversation),
		result, record.Outcome, encrypted, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert quarantine record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetQuarantineRecord(ctx context.Context, id uuid.UUID) (*QuarantineRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, tool_call_id, conversation, result, outcome, encrypted, created_at
		FROM quarantine_records WHERE id = ?`, id.String(),
	)

	record, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListQuarantineRecords returns matching records, newest first.
func (s *SQLiteStore) ListQuarantineRecords(ctx context.Context, filter RecordFilter) ([]QuarantineRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.ToolCallID != "" {
		conditions = append(conditions, "tool_call_id = ?")
		args = append(args, filter.ToolCallID)
	}

	query := `SELECT id, agent_id, tool_call_id, conversation, result, outcome, encrypted, created_at FROM quarantine_records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarantine records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []QuarantineRecord
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quarantine records: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) sealResult(id, result string) (string, bool, error) {
	if s.cipher == nil {
		return result, false, nil
	}
	ciphertext, err := s.cipher.Encrypt([]byte(result), []byte(id))
	if err != nil {
		return "", false, fmt.Errorf("failed to encrypt summary: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), true, nil
}

func (s *SQLiteStore) openResult(record *QuarantineRecord, encrypted bool) error {
	if !encrypted {
		return nil
	}
	if s.cipher == nil {
		return fmt.Errorf("record %s is encrypted and no encryption key is configured", record.ID)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(record.Result)
	if err != nil {
		return fmt.Errorf("failed to decode summary of record %s: %w", record.ID, err)
	}
	plaintext, err := s.cipher.Decrypt(ciphertext, []byte(record.ID.String()))
	if err != nil {
		return fmt.Errorf("failed to decrypt summary of record %s: %w", record.ID, err)
	}
	record.Result = string(plaintext)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRecord(row scanner) (*QuarantineRecord, error) {
	var (
		record       QuarantineRecord
		id           string
		conversation string
		encrypted    bool
	)

	err := row.Scan(
		&id, &record.AgentID, &record.ToolCallID, &conversation,
		&record.Result, &record.Outcome, &encrypted, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan quarantine record: %w", err)
	}

	record.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(conversation), &record.Conversation); err != nil {
		return nil, fmt.Errorf("failed to decode conversation of record %s: %w", id, err)
	}
	if err := s.openResult(&record, encrypted); err != nil {
		return nil, err
	}
	return &record, nil
}
