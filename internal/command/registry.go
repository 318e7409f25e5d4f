// Package command implements the bounded command registry and the shell
// tokenizer used to dispatch diagnostic command lines.
package command

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Capacity limits. These are part of the wire-level contract of the shell
// and must not be raised casually.
const (
	MaxCommands = 64 // registered commands per registry
	MaxNameLen  = 31 // command name bytes
	MaxDescLen  = 63 // description bytes
	MaxArgs     = 32 // tokens per line
)

// Dispatch-level result codes. Handler return values are handler-defined;
// these two are reserved for the dispatch layer itself.
const (
	ResultNotFound   = -1
	ResultParseError = -2
)

// Registration errors.
var (
	ErrEmptyName    = errors.New("command name is empty")
	ErrNilHandler   = errors.New("command handler is nil")
	ErrNameTooLong  = errors.New("command name too long")
	ErrDescTooLong  = errors.New("command description too long")
	ErrRegistryFull = errors.New("command registry full")
	ErrDuplicate    = errors.New("command already registered")
)

// HandlerFunc executes a command. args[0] is the command name. Output for
// the invoking session goes to out. ctx is the opaque value supplied at
// registration time. Returns 0 on success, non-zero on handler-defined
// failure.
type HandlerFunc func(out io.Writer, args []string, ctx any) int

// Entry is one registered command.
type Entry struct {
	Name string
	Desc string
	Fn   HandlerFunc
	Ctx  any
}

// Registry is a bounded table of commands. Registration and lookup are
// serialized; handler execution is not, so a long-running command never
// blocks lookups from other sessions.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make([]Entry, 0, MaxCommands)}
}

// Register adds a command. Names must be unique, non-empty, and within the
// length bound; the table holds at most MaxCommands entries.
func (r *Registry) Register(name, desc string, fn HandlerFunc, ctx any) error {
	if name == "" {
		return ErrEmptyName
	}
	if fn == nil {
		return ErrNilHandler
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	if len(desc) > MaxDescLen {
		return ErrDescTooLong
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= MaxCommands {
		return ErrRegistryFull
	}
	for _, e := range r.entries {
		if e.Name == name {
			return ErrDuplicate
		}
	}
	r.entries = append(r.entries, Entry{Name: name, Desc: desc, Fn: fn, Ctx: ctx})
	return nil
}

// Find returns the entry for name, if registered.
func (r *Registry) Find(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Linear scan: the table is small and bounded, hashing is not worth it.
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ForEach calls visitor for every entry in registration order.
func (r *Registry) ForEach(visitor func(Entry)) {
	r.mu.Lock()
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		visitor(e)
	}
}

// Execute tokenizes line (rewriting it in place) and dispatches the first
// token as a command name. An empty line succeeds trivially. The builtin
// "help" lists all registered commands. Returns the handler's result code,
// ResultNotFound for an unknown command (after writing a message to out),
// or ResultParseError when the line cannot be tokenized.
func (r *Registry) Execute(line []byte, out io.Writer) int {
	argv, err := ShellSplit(line, MaxArgs)
	if err != nil {
		return ResultParseError
	}
	if len(argv) == 0 {
		return 0
	}

	args := make([]string, len(argv))
	for i, a := range argv {
		args[i] = string(a)
	}

	if args[0] == "help" {
		r.printHelp(out)
		return 0
	}

	entry, ok := r.Find(args[0])
	if !ok {
		if out != nil {
			fmt.Fprintf(out, "Unknown command: %s\r\n", args[0])
		}
		return ResultNotFound
	}

	// Invoked outside the registry lock.
	return entry.Fn(out, args, entry.Ctx)
}

func (r *Registry) printHelp(out io.Writer) {
	if out == nil {
		return
	}
	fmt.Fprint(out, "Available commands:\r\n")
	r.ForEach(func(e Entry) {
		fmt.Fprintf(out, "  %-16s - %s\r\n", e.Name, e.Desc)
	})
}
