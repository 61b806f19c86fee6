// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history keeps exploration reports in an embedded store.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/replayprobe/services/replay/explore"
	store "github.com/AleutianAI/replayprobe/services/replay/storage/badger"
)

// ErrNotFound indicates no report with the requested run id.
var ErrNotFound = errors.New("run not found")

const (
	runPrefix   = "run/"
	indexPrefix = "idx/"
)

// Filter narrows List.
type Filter struct {
	// RecordingID keeps only runs of one recording when set.
	RecordingID string

	// Limit caps the number of reports. Zero means no cap.
	Limit int
}

// Store persists reports keyed by start time so listing is newest first.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *store.DB
}

// Open opens a store with cfg.
func Open(cfg store.Config) (*Store, error) {
	db, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an open database. Close closes db.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(r *explore.Report) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, r.StartedAt.UnixNano(), r.RunID))
}

// Record stores r. Recording the same run id again overwrites it.
func (s *Store) Record(ctx context.Context, r *explore.Report) error {
	if r == nil || r.RunID == "" {
		return errors.New("report must have a run id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	key := runKey(r)
	return s.db.Update(ctx, func(txn *badger.Txn) error {
		idx := []byte(indexPrefix + r.RunID)
		if item, err := txn.Get(idx); err == nil {
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(old); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(idx, key)
	})
}

// Get returns the report of runID.
func (s *Store) Get(ctx context.Context, runID string) (*explore.Report, error) {
	var report *explore.Report
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		report, err = decode(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// List returns reports newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*explore.Report, error) {
	var out []*explore.Report
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(runPrefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := decode(it.Item())
			if err != nil {
				return fmt.Errorf("decode %s: %w", strings.TrimPrefix(string(it.Item().Key()), runPrefix), err)
			}
			if f.RecordingID != "" && r.RecordingID != f.RecordingID {
				continue
			}
			out = append(out, r)
			if f.Limit > 0 && len(out) >= f.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decode(item *badger.Item) (*explore.Report, error) {
	var r explore.Report
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
