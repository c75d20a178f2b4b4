package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
)

// queueDoc is the persisted form of the pending queue
type queueDoc struct {
	NextSeq int64 `json:"next_seq"`
	Entries Queue `json:"entries"`
}

func (e *Engine) queueKey() string    { return constants.QueueKeyPrefix + e.userID }
func (e *Engine) snapshotKey() string { return constants.SnapshotKeyPrefix + e.userID }

// decodeQueue parses a stored queue. A corrupt document is logged and read
// as empty so that the engine keeps working.
func (e *Engine) decodeQueue(raw string, ok bool) queueDoc {
	var doc queueDoc
	if !ok || raw == "" {
		return doc
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		e.log.Warn("discarding unreadable pending queue", "user", e.userID, "error", err)
		return queueDoc{}
	}
	for _, m := range doc.Entries {
		if m.Seq > doc.NextSeq {
			doc.NextSeq = m.Seq
		}
	}
	return doc
}

// mutateQueue applies fn to the stored queue in one atomic read-modify-write
// and mirrors the result in memory.
func (e *Engine) mutateQueue(ctx context.Context, fn func(doc *queueDoc)) error {
	var result queueDoc
	err := e.store.Update(ctx, e.queueKey(), func(cur string, ok bool) (string, error) {
		doc := e.decodeQueue(cur, ok)
		fn(&doc)
		result = doc
		if len(doc.Entries) == 0 && doc.NextSeq == 0 {
			return "", nil
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist pending queue: %w", err)
	}
	e.queue = result
	e.setPending(len(result.Entries))
	return nil
}

// enqueue appends m with the next sequence number
func (e *Engine) enqueue(ctx context.Context, m models.PendingMutation) (models.PendingMutation, error) {
	m.EnqueuedAt = e.now()
	if m.Status == "" {
		m.Status = models.MutationQueued
	}
	err := e.mutateQueue(ctx, func(doc *queueDoc) {
		doc.NextSeq++
		m.Seq = doc.NextSeq
		doc.Entries = append(doc.Entries, m)
	})
	if err != nil {
		return m, err
	}
	e.log.Debug("queued change", "seq", m.Seq, "kind", m.Kind, "habit", m.HabitID)
	return m, nil
}

func (e *Engine) loadSnapshot(ctx context.Context) (Snapshot, error) {
	raw, ok, err := e.store.Get(ctx, e.snapshotKey())
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read cached habits: %w", err)
	}
	var snap Snapshot
	if !ok {
		return snap, nil
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		e.log.Warn("discarding unreadable habit cache", "user", e.userID, "error", err)
		return Snapshot{}, nil
	}
	return snap, nil
}

// saveSnapshot persists the server view. Failures are logged; the in-memory
// copy stays authoritative for this session.
func (e *Engine) saveSnapshot(ctx context.Context) {
	data, err := json.Marshal(e.base)
	if err == nil {
		err = e.store.Set(ctx, e.snapshotKey(), string(data))
	}
	if err != nil {
		e.log.Warn("failed to cache habits", "user", e.userID, "error", err)
	}
}
