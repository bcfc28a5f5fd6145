/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scriptcast/internal/domain"
	"scriptcast/internal/undo"
)

// EditSession applies edits one at a time and keeps undo/redo history of the
// bundle as JSON snapshots. It is not safe for concurrent use; the undo
// manager may be shared between sessions.
type EditSession struct {
	ID     string
	bundle domain.ParsedScriptBundle
	undo   *undo.Manager
	now    func() time.Time
}

// NewEditSession starts a session on b. A nil manager gets a private one.
func NewEditSession(b domain.ParsedScriptBundle, mgr *undo.Manager) *EditSession {
	if mgr == nil {
		mgr = undo.NewManager(undo.Config{MaxPerSession: 100})
	}
	return &EditSession{ID: uuid.NewString(), bundle: b, undo: mgr, now: time.Now}
}

// Bundle returns the current state.
func (s *EditSession) Bundle() domain.ParsedScriptBundle { return s.bundle }

// Apply records the current state and applies e. Skipped edits still
// produce an undo step because their diagnostic changes the bundle.
func (s *EditSession) Apply(e Edit) error {
	snap, err := s.snapshot(string(e.Type))
	if err != nil {
		return err
	}
	s.undo.Push(snap)
	s.bundle = ApplyUserEdits(s.bundle, []Edit{e})
	return nil
}

// Undo restores the state before the last edit. It reports false when there
// is nothing to undo.
func (s *EditSession) Undo() (bool, error) {
	cur, err := s.snapshot("undo")
	if err != nil {
		return false, err
	}
	prev, ok := s.undo.Undo(s.ID, cur)
	if !ok {
		return false, nil
	}
	return true, s.restore(prev)
}

// Redo re-applies the last undone edit.
func (s *EditSession) Redo() (bool, error) {
	cur, err := s.snapshot("redo")
	if err != nil {
		return false, err
	}
	next, ok := s.undo.Redo(s.ID, cur)
	if !ok {
		return false, nil
	}
	return true, s.restore(next)
}

func (s *EditSession) CanUndo() bool { return s.undo.CanUndo(s.ID) }
func (s *EditSession) CanRedo() bool { return s.undo.CanRedo(s.ID) }

// Close releases the session's history.
func (s *EditSession) Close() { s.undo.Clear(s.ID) }

func (s *EditSession) snapshot(label string) (undo.Snapshot, error) {
	blob, err := json.Marshal(s.bundle)
	if err != nil {
		return undo.Snapshot{}, fmt.Errorf("snapshot bundle: %w", err)
	}
	return undo.Snapshot{Session: s.ID, Label: label, Blob: blob, TS: s.now()}, nil
}

func (s *EditSession) restore(snap undo.Snapshot) error {
	var b domain.ParsedScriptBundle
	if err := json.Unmarshal(snap.Blob, &b); err != nil {
		return fmt.Errorf("restore %s: %w", snap.Label, err)
	}
	s.bundle = b
	return nil
}
