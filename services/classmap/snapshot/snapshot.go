// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot persists ProjectModels in BadgerDB and compares them.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

// SchemaVersion is the version of the stored payload format.
const SchemaVersion = "1.0"

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

var (
	// ErrSnapshotNotFound indicates no snapshot matches the requested ID or
	// project.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCorrupt indicates a stored payload failed its hash or decode.
	ErrCorrupt = errors.New("snapshot payload corrupt")

	// ErrInvalidArgument indicates a nil context, nil model or empty ID.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Key layout. Every snapshot lives under its project's prefix so a project
// can be listed with one prefix scan.
//
//	cm/p/{project}/s/{id}/model → gzip(JSON(ProjectModel))
//	cm/p/{project}/s/{id}/info  → JSON(Metadata)
//	cm/p/{project}/head         → id of the newest snapshot
//	cm/id/{id}                  → project
const (
	projectsPrefix = "cm/p/"
	idsPrefix      = "cm/id/"
	infoSuffix     = "/info"
)

func projectPrefix(project string) []byte {
	return []byte(projectsPrefix + project + "/")
}

func modelKey(project, id string) []byte {
	return []byte(projectsPrefix + project + "/s/" + id + "/model")
}

func infoKey(project, id string) []byte {
	return []byte(projectsPrefix + project + "/s/" + id + infoSuffix)
}

func headKey(project string) []byte {
	return []byte(projectsPrefix + project + "/head")
}

func idKey(id string) []byte {
	return []byte(idsPrefix + id)
}

// Metadata describes one saved snapshot.
type Metadata struct {
	// SnapshotID is a random UUID.
	SnapshotID string `json:"snapshot_id"`

	// ProjectRoot is the absolute path the model was analyzed from.
	ProjectRoot string `json:"project_root"`

	// ProjectHash groups the keys of one project root.
	ProjectHash string `json:"project_hash"`

	// ModelHash is the SHA256 of the model JSON; equal hashes mean equal models.
	ModelHash string `json:"model_hash"`

	Label string `json:"label,omitempty"`

	// CreatedAtMilli is the save time in Unix milliseconds.
	CreatedAtMilli int64 `json:"created_at_milli"`

	Modules int `json:"modules"`
	Classes int `json:"classes"`
	Methods int `json:"methods"`
	Calls   int `json:"calls"`

	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the stored payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the stored payload.
	ContentHash string `json:"content_hash"`
}

// Manager saves and loads model snapshots in BadgerDB.
//
// Description:
//
//	Each snapshot stores the full ProjectModel as gzip-compressed JSON plus
//	a metadata record for listing. Snapshots are grouped by project root,
//	and each project keeps a head pointer to its newest snapshot.
//
// Thread Safety:
//
//	Safe for concurrent use. Every operation runs in its own Badger
//	transaction.
type Manager struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager over an opened BadgerDB. The caller owns the
// DB and closes it.
func NewManager(db *badger.DB, logger *slog.Logger) (*Manager, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("%w: nil badger db", ErrInvalidArgument)
	case logger == nil:
		return nil, fmt.Errorf("%w: nil logger", ErrInvalidArgument)
	}
	return &Manager{db: db, logger: logger, now: time.Now}, nil
}

// OpenDB opens (creating if needed) an on-disk BadgerDB at dir with Badger's
// own logging silenced.
func OpenDB(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db %s: %w", dir, err)
	}
	return db, nil
}

// ProjectHash returns the first 16 hex digits of SHA256(projectRoot).
func ProjectHash(projectRoot string) string {
	return sum([]byte(projectRoot))[:16]
}

func absRoot(projectRoot string) string {
	if abs, err := filepath.Abs(projectRoot); err == nil {
		return abs
	}
	return projectRoot
}

// Save stores pm as a new snapshot of projectRoot and moves the project's
// head to it. Payload, metadata, head and ID index are written in one
// transaction.
//
// Inputs:
//
//	ctx - Checked before writing. Must not be nil.
//	projectRoot - Made absolute before hashing.
//	pm - The model to store. Must not be nil.
//	label - Optional human-readable label.
func (m *Manager) Save(ctx context.Context, projectRoot string, pm model.ProjectModel, label string) (*Metadata, error) {
	if ctx == nil || pm == nil {
		return nil, fmt.Errorf("%w: nil context or model", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("save canceled: %w", err)
	}

	root := absRoot(projectRoot)
	p, err := encodeModel(pm)
	if err != nil {
		return nil, err
	}

	modules, classes, methods, calls := pm.Counts()
	meta := &Metadata{
		SnapshotID:     uuid.NewString(),
		ProjectRoot:    root,
		ProjectHash:    ProjectHash(root),
		ModelHash:      p.modelHash,
		Label:          label,
		CreatedAtMilli: m.now().UnixMilli(),
		Modules:        modules,
		Classes:        classes,
		Methods:        methods,
		Calls:          calls,
		SchemaVersion:  SchemaVersion,
		CompressedSize: int64(len(p.blob)),
		ContentHash:    p.blobHash,
	}
	info, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	project, id := meta.ProjectHash, meta.SnapshotID
	err = m.db.Update(func(txn *badger.Txn) error {
		entries := []struct{ key, val []byte }{
			{modelKey(project, id), p.blob},
			{infoKey(project, id), info},
			{headKey(project), []byte(id)},
			{idKey(id), []byte(project)},
		}
		for _, e := range entries {
			if err := txn.Set(e.key, e.val); err != nil {
				return fmt.Errorf("set %s: %w", e.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", id),
		slog.String("project_root", root),
		slog.Int("classes", classes),
		slog.Int64("compressed_size", meta.CompressedSize))
	return meta, nil
}

// Load retrieves a snapshot by ID.
//
// Outputs:
//
//	model.ProjectModel - The stored model.
//	*Metadata - The snapshot metadata.
//	error - Wraps ErrSnapshotNotFound for unknown IDs, ErrCorrupt when the
//	        payload fails verification.
func (m *Manager) Load(ctx context.Context, snapshotID string) (model.ProjectModel, *Metadata, error) {
	if ctx == nil || snapshotID == "" {
		return nil, nil, fmt.Errorf("%w: nil context or empty snapshot ID", ErrInvalidArgument)
	}

	var pm model.ProjectModel
	var meta *Metadata
	err := m.db.View(func(txn *badger.Txn) error {
		project, err := get(txn, idKey(snapshotID))
		if err != nil {
			return err
		}
		pm, meta, err = read(txn, string(project), snapshotID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot %s: %w", snapshotID, err)
	}
	return pm, meta, nil
}

// LoadLatest loads the head snapshot of projectRoot.
func (m *Manager) LoadLatest(ctx context.Context, projectRoot string) (model.ProjectModel, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("%w: nil context", ErrInvalidArgument)
	}
	root := absRoot(projectRoot)
	project := ProjectHash(root)

	var pm model.ProjectModel
	var meta *Metadata
	err := m.db.View(func(txn *badger.Txn) error {
		id, err := get(txn, headKey(project))
		if err != nil {
			return err
		}
		pm, meta, err = read(txn, project, string(id))
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load latest snapshot of %s: %w", root, err)
	}
	return pm, meta, nil
}

// List returns snapshot metadata, newest first.
//
// Inputs:
//
//	ctx - Checked between entries. Must not be nil.
//	projectRoot - Optional filter. If empty, every project is listed.
//	limit - Maximum number of results. If <= 0, DefaultListLimit.
func (m *Manager) List(ctx context.Context, projectRoot string, limit int) ([]*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: nil context", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	prefix := []byte(projectsPrefix)
	if projectRoot != "" {
		prefix = projectPrefix(ProjectHash(absRoot(projectRoot)))
	}

	metas := make([]*Metadata, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), infoSuffix) {
				continue
			}
			meta := &Metadata{}
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, meta) }); err != nil {
				m.logger.Warn("skipping unreadable snapshot metadata",
					slog.String("key", string(item.KeyCopy(nil))),
					slog.String("error", err.Error()))
				continue
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].CreatedAtMilli > metas[j].CreatedAtMilli
	})
	if len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// Delete removes a snapshot. The project's head is removed too when it
// pointed at this snapshot; it is not moved to an older one.
func (m *Manager) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil || snapshotID == "" {
		return fmt.Errorf("%w: nil context or empty snapshot ID", ErrInvalidArgument)
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		raw, err := get(txn, idKey(snapshotID))
		if err != nil {
			return err
		}
		project := string(raw)

		for _, key := range [][]byte{modelKey(project, snapshotID), infoKey(project, snapshotID), idKey(snapshotID)} {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}

		head, err := get(txn, headKey(project))
		switch {
		case errors.Is(err, ErrSnapshotNotFound):
			return nil
		case err != nil:
			return err
		case string(head) == snapshotID:
			return txn.Delete(headKey(project))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// read loads and verifies one snapshot inside txn.
func read(txn *badger.Txn, project, id string) (model.ProjectModel, *Metadata, error) {
	info, err := get(txn, infoKey(project, id))
	if err != nil {
		return nil, nil, err
	}
	meta := &Metadata{}
	if err := json.Unmarshal(info, meta); err != nil {
		return nil, nil, fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
	}

	blob, err := get(txn, modelKey(project, id))
	if err != nil {
		return nil, nil, err
	}
	pm, err := decodeModel(blob, meta.ContentHash)
	if err != nil {
		return nil, nil, err
	}
	return pm, meta, nil
}

// get copies the value at key, mapping a missing key to ErrSnapshotNotFound.
func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
