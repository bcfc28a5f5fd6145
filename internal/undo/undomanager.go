/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is a reversible state blob for an edit session. The manager
// treats Blob as opaque; its size is estimated as len(Blob). TS is when the
// snapshot was captured.
type Snapshot struct {
	Session string
	Label   string
	Blob    []byte
	TS      time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; the oldest entries across sessions are pruned when exceeded.
	MaxBytes int
	// MaxPerSession limits the undo depth of one session (0 means unlimited).
	MaxPerSession int
	// MinInterval coalesces snapshots pushed within the interval for the same
	// session, replacing the previous one. Zero disables coalescing.
	MinInterval time.Duration
}

// Manager keeps undo/redo stacks per edit session. It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-session stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// accounting, undo side only
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Push records the state before a change. Any new change invalidates the
// session's redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.Session]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// keep the older state, it is what undo must return to
			m.redo[s.Session] = nil
			return
		}
	}
	m.undo[s.Session] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.redo[s.Session] = nil
	m.enforceCapsLocked(s.Session)
}

// Undo pops the last recorded state of session and parks current on the
// redo stack.
func (m *Manager) Undo(session string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[session]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[session] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	current.Session = session
	m.redo[session] = append(m.redo[session], current)
	return s, true
}

// Redo pops the last undone state and pushes current back onto undo.
func (m *Manager) Redo(session string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[session]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[session] = r[:len(r)-1]
	current.Session = session
	m.undo[session] = append(m.undo[session], current)
	m.totalBytes += len(current.Blob)
	m.enforceCapsLocked(session)
	return s, true
}

// CanUndo and CanRedo report whether the session has entries.
func (m *Manager) CanUndo(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[session]) > 0
}

func (m *Manager) CanRedo(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[session]) > 0
}

// Clear drops both stacks of a session.
func (m *Manager) Clear(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[session] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, session)
	delete(m.redo, session)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, sessions int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, sessions, totalSnapshots
}

func (m *Manager) enforceCapsLocked(session string) {
	if m.cfg.MaxPerSession > 0 {
		stack := m.undo[session]
		if len(stack) > m.cfg.MaxPerSession {
			toDrop := len(stack) - m.cfg.MaxPerSession
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[session] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all sessions
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldest := ""
		found := false
		var oldestTS time.Time
		for sess, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldest, oldestTS, found = sess, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldest]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldest] = stack[1:]
		if len(m.undo[oldest]) == 0 {
			delete(m.undo, oldest)
		}
	}
}
