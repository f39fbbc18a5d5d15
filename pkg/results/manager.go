// Package results accumulates function-call results between model turns and
// renders them for re-injection into the next prompt.
package results

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Entry is one stored call result.
type Entry struct {
	ID       string    `json:"call_id"`
	Name     string    `json:"name"`
	Value    any       `json:"result"`
	StoredAt time.Time `json:"-"`
}

// Manager collects call results keyed by call id. Storing a result for an
// existing id overwrites the value but keeps the id's original position.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewManager constructs an empty result manager.
func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]*Entry),
	}
}

// Store records the result for a call id. Last write wins.
func (m *Manager) Store(id, name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[id]; ok {
		existing.Name = name
		existing.Value = value
		existing.StoredAt = time.Now()
		return
	}
	m.entries[id] = &Entry{
		ID:       id,
		Name:     name,
		Value:    value,
		StoredAt: time.Now(),
	}
	m.order = append(m.order, id)
}

// Get returns the stored entry for a call id.
func (m *Manager) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns all entries ordered by first store.
func (m *Manager) Snapshot() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.entries[id])
	}
	return out
}

// Len returns the number of stored results.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Clear removes all stored results.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	m.order = nil
}

// PromptSection renders the stored results as result envelopes ready to be
// appended to the next model turn. Returns "" when nothing is stored.
func (m *Manager) PromptSection() string {
	snapshot := m.Snapshot()
	if len(snapshot) == 0 {
		return ""
	}

	var b strings.Builder
	for i, entry := range snapshot {
		if i > 0 {
			b.WriteByte('\n')
		}
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		b.WriteString("<mfcs_result>\n")
		b.Write(data)
		b.WriteString("\n</mfcs_result>")
	}
	return b.String()
}
