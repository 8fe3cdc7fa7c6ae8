// Package commands is the host command registry. Views and the dispatcher
// invoke named commands without knowing which component implements them.
package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler implements a command. args are command specific.
type Handler func(ctx context.Context, args ...any) error

// Command is a registered host command.
type Command struct {
	ID      string
	Title   string
	Handler Handler
}

// Registry manages the host commands. All methods are safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

// NewRegistry creates a new empty command registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Command)}
}

// Register adds a command. Returns an error if a command with the same id is
// already registered or if the handler is nil.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd.ID == "" || cmd.Handler == nil {
		return fmt.Errorf("cannot register command %q without id or handler", cmd.ID)
	}
	if _, exists := r.cmds[cmd.ID]; exists {
		return fmt.Errorf("command already registered: %s", cmd.ID)
	}
	r.cmds[cmd.ID] = cmd
	return nil
}

// RegisterFunc is Register for a bare handler.
func (r *Registry) RegisterFunc(id, title string, h Handler) error {
	return r.Register(Command{ID: id, Title: title, Handler: h})
}

// Unregister removes a command by id. Returns an error if the command is
// not registered.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cmds[id]; !exists {
		return fmt.Errorf("command not registered: %s", id)
	}
	delete(r.cmds, id)
	return nil
}

// Get retrieves a command by id.
func (r *Registry) Get(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.cmds[id]
	return cmd, ok
}

// Execute runs the command registered under id. The registry lock is not
// held while the handler runs, so handlers may execute other commands.
func (r *Registry) Execute(ctx context.Context, id string, args ...any) error {
	cmd, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("command not registered: %s", id)
	}
	if err := cmd.Handler(ctx, args...); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

// All returns all registered commands sorted by id.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.cmds))
	for _, cmd := range r.cmds {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].ID < cmds[j].ID
	})
	return cmds
}

// UnregisterAll removes every command, as done when the host disposes.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = make(map[string]Command)
}
