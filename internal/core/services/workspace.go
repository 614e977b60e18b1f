package services

import (
	"strings"
	"sync"

	"github.com/scanops/console/internal/core/ports"
)

// Workspace tracks which workspace the console is currently showing.
type Workspace struct {
	mu        sync.RWMutex
	active    string
	listeners []ports.WorkspaceListener
}

func NewWorkspace(initial string) *Workspace {
	return &Workspace{active: initial}
}

func (w *Workspace) Active() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// Subscribe registers l for future workspace switches.
func (w *Workspace) Subscribe(l ports.WorkspaceListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// Switch changes the active workspace. It returns false when id is already active.
func (w *Workspace) Switch(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrWorkspaceInvalid
	}

	w.mu.Lock()
	previous := w.active
	if previous == id {
		w.mu.Unlock()
		return false, nil
	}
	w.active = id
	listeners := append([]ports.WorkspaceListener(nil), w.listeners...)
	w.mu.Unlock()

	for _, l := range listeners {
		l.WorkspaceChanged(previous, id)
	}
	return true, nil
}
