package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/google/uuid"
)

var (
	_ quarantine.Store = (*EphemeralStore)(nil)
	_ RecordReader     = (*EphemeralStore)(nil)
)

// EphemeralStore keeps records in process memory.
type EphemeralStore struct {
	mu      sync.RWMutex
	records []QuarantineRecord
	now     func() time.Time
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{now: time.Now}
}

func (s *EphemeralStore) SaveQuarantineRecord(ctx context.Context, record quarantine.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record.Conversation = slices.Clone(record.Conversation)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, QuarantineRecord{
		ID:        uuid.New(),
		Record:    record,
		CreatedAt: s.now().UTC(),
	})
	return nil
}

func (s *EphemeralStore) GetQuarantineRecord(_ context.Context, id uuid.UUID) (*QuarantineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.ID == id {
			record.Conversation = slices.Clone(record.Conversation)
			return &record, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *EphemeralStore) ListQuarantineRecords(_ context.Context, filter RecordFilter) ([]QuarantineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []QuarantineRecord
	for _, record := range slices.Backward(s.records) {
		if filter.AgentID != "" && record.AgentID != filter.AgentID {
			continue
		}
		if filter.ToolCallID != "" && record.ToolCallID != filter.ToolCallID {
			continue
		}
		record.Conversation = slices.Clone(record.Conversation)
		records = append(records, record)
		if filter.Limit > 0 && len(records) == filter.Limit {
			break
		}
	}
	return records, nil
}
