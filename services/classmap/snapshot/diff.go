// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

// Change types reported in ClassDiff.
const (
	ChangeBases      = "bases_changed"
	ChangeAttributes = "attributes_changed"
	ChangeMethods    = "methods_changed"
	ChangeCalls      = "calls_changed"
)

// Diff contains the differences between two models.
type Diff struct {
	BaseSnapshotID   string `json:"base_snapshot_id"`
	TargetSnapshotID string `json:"target_snapshot_id"`

	// ClassesAdded are "module.Class" IDs present in target but not in base.
	ClassesAdded []string `json:"classes_added"`

	// ClassesRemoved are "module.Class" IDs present in base but not in target.
	ClassesRemoved []string `json:"classes_removed"`

	// ClassesModified are classes whose record changed.
	ClassesModified []ClassDiff `json:"classes_modified"`

	// CallsAdded counts call edges in target but not in base.
	CallsAdded int `json:"calls_added"`

	// CallsRemoved counts call edges in base but not in target.
	CallsRemoved int `json:"calls_removed"`

	Summary Summary `json:"summary"`
}

// ClassDiff describes how one class changed.
type ClassDiff struct {
	// ClassID is "module.Class".
	ClassID string `json:"class_id"`

	// Changes lists every change type that applies, in a fixed order.
	Changes []string `json:"changes"`
}

// Summary contains aggregate statistics about a diff.
type Summary struct {
	// TotalChanges is added + removed + modified classes + call changes.
	TotalChanges int `json:"total_changes"`

	// ModulesAffected is the number of distinct modules with changed classes.
	ModulesAffected int `json:"modules_affected"`

	// ChangeRatio is the fraction of classes that changed (0.0 to 1.0).
	ChangeRatio float64 `json:"change_ratio"`
}

// classKey identifies a class across snapshots.
type classKey struct {
	module string
	name   string
}

func (k classKey) String() string {
	return k.module + "." + k.name
}

// DiffModels computes the differences between two models.
//
// Description:
//
//	Classes are matched by module path and name, so a class moved to
//	another module shows as remove + add. Calls are compared as a set of
//	(module, caller, callee, raw) tuples; order changes are not reported.
//
// Outputs:
//
//	*Diff - The computed differences. Slices are sorted and never nil.
//	error - Non-nil if either model is nil.
//
// Complexity:
//
//	O(C + E) over classes and call edges of both models.
func DiffModels(base, target model.ProjectModel, baseSnapshotID, targetSnapshotID string) (*Diff, error) {
	if base == nil {
		return nil, fmt.Errorf("base model must not be nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target model must not be nil")
	}

	diff := &Diff{
		BaseSnapshotID:   baseSnapshotID,
		TargetSnapshotID: targetSnapshotID,
		ClassesAdded:     []string{},
		ClassesRemoved:   []string{},
		ClassesModified:  []ClassDiff{},
	}

	baseClasses := indexClasses(base)
	targetClasses := indexClasses(target)
	affected := make(map[string]struct{})

	for key, tRec := range targetClasses {
		bRec, ok := baseClasses[key]
		if !ok {
			diff.ClassesAdded = append(diff.ClassesAdded, key.String())
			affected[key.module] = struct{}{}
			continue
		}
		if changes := classChanges(bRec, tRec); len(changes) > 0 {
			diff.ClassesModified = append(diff.ClassesModified, ClassDiff{ClassID: key.String(), Changes: changes})
			affected[key.module] = struct{}{}
		}
	}
	for key := range baseClasses {
		if _, ok := targetClasses[key]; !ok {
			diff.ClassesRemoved = append(diff.ClassesRemoved, key.String())
			affected[key.module] = struct{}{}
		}
	}

	sort.Strings(diff.ClassesAdded)
	sort.Strings(diff.ClassesRemoved)
	sort.Slice(diff.ClassesModified, func(i, j int) bool {
		return diff.ClassesModified[i].ClassID < diff.ClassesModified[j].ClassID
	})

	baseCalls := buildCallSet(base)
	targetCalls := buildCallSet(target)
	for key := range targetCalls {
		if _, ok := baseCalls[key]; !ok {
			diff.CallsAdded++
		}
	}
	for key := range baseCalls {
		if _, ok := targetCalls[key]; !ok {
			diff.CallsRemoved++
		}
	}

	total := len(baseClasses)
	if len(targetClasses) > total {
		total = len(targetClasses)
	}
	changed := len(diff.ClassesAdded) + len(diff.ClassesRemoved) + len(diff.ClassesModified)
	ratio := 0.0
	if total > 0 {
		ratio = float64(changed) / float64(total)
	}

	diff.Summary = Summary{
		TotalChanges:    changed + diff.CallsAdded + diff.CallsRemoved,
		ModulesAffected: len(affected),
		ChangeRatio:     ratio,
	}
	return diff, nil
}

// Diff loads two snapshots and compares them.
func (m *Manager) Diff(ctx context.Context, baseID, targetID string) (*Diff, error) {
	base, _, err := m.Load(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("loading base: %w", err)
	}
	target, _, err := m.Load(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading target: %w", err)
	}
	return DiffModels(base, target, baseID, targetID)
}

func indexClasses(pm model.ProjectModel) map[classKey]*model.ClassRecord {
	out := make(map[classKey]*model.ClassRecord)
	for module, classes := range pm {
		for name, rec := range classes {
			out[classKey{module: module, name: name}] = rec
		}
	}
	return out
}

// classChanges lists what differs between two records of the same class.
func classChanges(base, target *model.ClassRecord) []string {
	changes := make([]string, 0, 4)
	if !reflect.DeepEqual(base.Bases, target.Bases) {
		changes = append(changes, ChangeBases)
	}
	if !reflect.DeepEqual(base.Attributes, target.Attributes) {
		changes = append(changes, ChangeAttributes)
	}
	if !reflect.DeepEqual(base.MethodNames(), target.MethodNames()) {
		changes = append(changes, ChangeMethods)
	}
	for name, bm := range base.Methods {
		tm, ok := target.Methods[name]
		if ok && !reflect.DeepEqual(bm.Calls, tm.Calls) {
			changes = append(changes, ChangeCalls)
			break
		}
	}
	return changes
}

// buildCallSet creates a set of call keys for comparison.
// Key format: "module|caller|callee|raw"
func buildCallSet(pm model.ProjectModel) map[string]struct{} {
	set := make(map[string]struct{})
	for module, classes := range pm {
		for _, rec := range classes {
			for _, m := range rec.Methods {
				for _, c := range m.Calls {
					set[module+"|"+c.Caller+"|"+c.Callee+"|"+c.Raw] = struct{}{}
				}
			}
		}
	}
	return set
}
