package memory_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/memory/test"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/backend/secret"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

type recordStore interface {
	quarantine.Store
	memory.RecordReader
}

func stores(t *testing.T) map[string]recordStore {
	t.Helper()

	inMemory, err := memory.NewSQLiteStore(memory.InMemory)
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:) error = %v", err)
	}
	t.Cleanup(func() { _ = inMemory.Close() })

	onDisk, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "data", "quarantine.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore(file) error = %v", err)
	}
	t.Cleanup(func() { _ = onDisk.Close() })

	encrypted, err := memory.NewSQLiteStore(memory.InMemory, memory.WithCipher(newCipher(t)))
	if err != nil {
		t.Fatalf("NewSQLiteStore(encrypted) error = %v", err)
	}
	t.Cleanup(func() { _ = encrypted.Close() })

	return map[string]recordStore{
		"sqlite memory":    inMemory,
		"sqlite file":      onDisk,
		"sqlite encrypted": encrypted,
		"ephemeral":        memory.NewEphemeralStore(),
	}
}

func newCipher(t *testing.T) *secret.Client {
	t.Helper()
	handle, err := secret.GenerateKeyset()
	if err != nil {
		t.Fatal(err)
	}
	client, err := secret.NewClient(handle)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

var ignoreGenerated = cmpopts.IgnoreFields(memory.QuarantineRecord{}, "ID", "CreatedAt")

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			saved := test.NewRecordBuilder(t, store).Build(ctx)

			records, err := store.ListQuarantineRecords(ctx, memory.RecordFilter{AgentID: test.AgentID})
			if err != nil {
				t.Fatalf("ListQuarantineRecords() error = %v", err)
			}
			want := []memory.QuarantineRecord{{Record: saved}}
			if diff := cmp.Diff(want, records, ignoreGenerated); diff != "" {
				t.Fatalf("ListQuarantineRecords() mismatch (-want +got):\n%s", diff)
			}
			if records[0].ID == uuid.Nil || records[0].CreatedAt.IsZero() {
				t.Errorf("generated fields missing: %+v", records[0])
			}

			got, err := store.GetQuarantineRecord(ctx, records[0].ID)
			if err != nil {
				t.Fatalf("GetQuarantineRecord() error = %v", err)
			}
			if diff := cmp.Diff(records[0], *got, cmpopts.EquateApproxTime(0)); diff != "" {
				t.Errorf("GetQuarantineRecord() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreFilters(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			test.NewRecordBuilder(t, store).WithToolCallID("call-1").WithResult("first").Build(ctx)
			test.NewRecordBuilder(t, store).WithToolCallID("call-2").WithResult("second").Build(ctx)
			test.NewRecordBuilder(t, store).WithAgentID("other").WithToolCallID("call-3").Build(ctx)

			tests := []struct {
				name   string
				filter memory.RecordFilter
				want   []string
			}{
				{name: "agent newest first", filter: memory.RecordFilter{AgentID: test.AgentID}, want: []string{"second", "first"}},
				{name: "tool call", filter: memory.RecordFilter{ToolCallID: "call-1"}, want: []string{"first"}},
				{name: "limit", filter: memory.RecordFilter{AgentID: test.AgentID, Limit: 1}, want: []string{"second"}},
				{name: "no match", filter: memory.RecordFilter{AgentID: "missing"}},
			}

			for _, tt := range tests {
				records, err := store.ListQuarantineRecords(ctx, tt.filter)
				if err != nil {
					t.Fatalf("%s: ListQuarantineRecords() error = %v", tt.name, err)
				}
				var got []string
				for _, record := range records {
					got = append(got, record.Result)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("%s: results mismatch (-want +got):\n%s", tt.name, diff)
				}
			}
		})
	}
}

func TestStoreRecordNotFound(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := store.GetQuarantineRecord(context.Background(), uuid.New())
			if !errors.Is(err, memory.ErrRecordNotFound) {
				t.Errorf("GetQuarantineRecord() error = %v, want %v", err, memory.ErrRecordNotFound)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	got := memory.SanitizeError(errors.New("failed to insert quarantine record: sqlite: disk I/O error"))
	if got.Error() != "failed to insert quarantine record: disk I/O error" {
		t.Errorf("SanitizeError() = %q", got)
	}
	if memory.SanitizeError(nil) != nil {
		t.Errorf("SanitizeError(nil) != nil")
	}
}

func TestStoreEncryptedResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quarantine.db")
	cipher := newCipher(t)

	store, err := memory.NewSQLiteStore(path, memory.WithCipher(cipher))
	if err != nil {
		t.Fatal(err)
	}
	test.NewRecordBuilder(t, store).WithResult("secret tool output").Build(ctx)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	plain, err := memory.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = plain.ListQuarantineRecords(ctx, memory.RecordFilter{})
	_ = plain.Close()
	if err == nil {
		t.Fatal("reading an encrypted record without a key succeeded")
	}

	reopened, err := memory.NewSQLiteStore(path, memory.WithCipher(cipher))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()
	records, err := reopened.ListQuarantineRecords(ctx, memory.RecordFilter{})
	if err != nil {
		t.Fatalf("ListQuarantineRecords() error = %v", err)
	}
	if len(records) != 1 || records[0].Result != "secret tool output" {
		t.Errorf("records = %+v", records)
	}
}

func TestStorePrefixLikeSummary(t *testing.T) {
	t.Parallel()

	const summary = "enc:v1:not ciphertext"
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			test.NewRecordBuilder(t, store).WithToolCallID("call-prefix").WithResult(summary).Build(ctx)

			records, err := store.ListQuarantineRecords(ctx, memory.RecordFilter{ToolCallID: "call-prefix"})
			if err != nil {
				t.Fatalf("ListQuarantineRecords() error = %v", err)
			}
			if len(records) != 1 || records[0].Result != summary {
				t.Errorf("records = %+v", records)
			}
		})
	}
}

func TestStoreMigratesLegacySchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quarantine.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
	CREATE TABLE quarantine_records (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		tool_call_id TEXT NOT NULL,
		conversation TEXT NOT NULL,
		result TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	INSERT INTO quarantine_records VALUES
		('0195fbbe-0000-7000-8000-000000000001', 'agent-legacy', 'call-1', '[]', 'old summary', 'done', '2025-01-01 00:00:00');
	`)
	_ = db.Close()
	if err != nil {
		t.Fatal(err)
	}

	store, err := memory.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	test.NewRecordBuilder(t, store).WithAgentID("agent-legacy").WithToolCallID("call-2").WithResult("new summary").Build(ctx)

	records, err := store.ListQuarantineRecords(ctx, memory.RecordFilter{AgentID: "agent-legacy"})
	if err != nil {
		t.Fatalf("ListQuarantineRecords() error = %v", err)
	}
	var got []string
	for _, record := range records {
		got = append(got, record.Result)
	}
	if diff := cmp.Diff([]string{"new summary", "old summary"}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}
