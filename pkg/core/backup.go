package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Backup serializes every whitelisted record into a pretty-printed JSON
// object mapping key to document. Timestamps and other keys are left out.
func (s *Store) Backup(ctx context.Context) (string, error) {
	recs, err := s.all(ctx, "backup")
	if err != nil {
		return "", err
	}

	allowed := s.backupSet()
	payload := make(map[string]json.RawMessage)
	for _, r := range recs {
		if allowed[r.Key] {
			payload[r.Key] = r.Data
		}
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", NewError("backup", "", ReasonUnknown, err)
	}
	s.logger.Info("backup created", "keys", len(payload))
	return string(out), nil
}

// Restore writes every whitelisted entry of a Backup document.
//
// Entries are saved one by one in key order; a failure stops the restore and
// leaves earlier keys written. With AtomicRestore and a Batcher backend the
// entries are written in one transaction instead.
func (s *Store) Restore(ctx context.Context, serialized string) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(serialized), &payload); err != nil {
		return fmt.Errorf("invalid backup: %w", err)
	}

	allowed := s.backupSet()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if allowed[k] {
			keys = append(keys, k)
		} else {
			s.logger.Debug("restore skipped unknown key", "key", k)
		}
	}
	sort.Strings(keys)

	if s.config.AtomicRestore {
		backend, err := s.ready(ctx, "restore")
		if err != nil {
			return err
		}
		if batcher, ok := Capability[Batcher](backend); ok {
			return s.restoreBatch(ctx, batcher, keys, payload)
		}
		s.logger.Warn("backend does not support batches, restoring key by key")
	}

	for _, k := range keys {
		if err := s.SaveRaw(ctx, k, payload[k]); err != nil {
			return fmt.Errorf("restore stopped at %s: %w", k, err)
		}
	}
	s.logger.Info("backup restored", "keys", len(keys))
	return nil
}

func (s *Store) restoreBatch(ctx context.Context, batcher Batcher, keys []string, payload map[string]json.RawMessage) error {
	now := s.config.Now().UnixMilli()
	recs := make([]Record, 0, len(keys))
	for _, k := range keys {
		recs = append(recs, Record{Key: k, Data: payload[k], Timestamp: now})
	}
	if err := batcher.PutBatch(ctx, recs); err != nil {
		return wrapError("restore", "", err)
	}
	for _, r := range recs {
		s.broker.publish(Event{Type: EventSave, Key: r.Key, Timestamp: now})
	}
	s.logger.Info("backup restored atomically", "keys", len(recs))
	return nil
}

func (s *Store) backupSet() map[string]bool {
	set := make(map[string]bool, len(s.config.BackupKeys))
	for _, k := range s.config.BackupKeys {
		set[k] = true
	}
	return set
}
