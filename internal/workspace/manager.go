package workspace

import (
	"sort"
	"sync"
)

// Manager hands out workspaces by id, creating them on first use.
type Manager struct {
	opts Options

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewManager returns a manager whose workspaces share opts.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts, workspaces: make(map[string]*Workspace)}
}

// Get returns the workspace id, creating it if needed.
func (m *Manager) Get(id string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		w = New(id, m.opts)
		m.workspaces[id] = w
	}
	return w
}

// Lookup returns an existing workspace.
func (m *Manager) Lookup(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	return w, ok
}

// IDs lists the open workspaces, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close flushes and closes every workspace.
func (m *Manager) Close() {
	m.mu.Lock()
	ws := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		ws = append(ws, w)
	}
	m.workspaces = make(map[string]*Workspace)
	m.mu.Unlock()

	for _, w := range ws {
		w.Close()
	}
}
