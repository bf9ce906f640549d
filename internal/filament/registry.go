package filament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store persists the whole filament collection.
type Store interface {
	Load(ctx context.Context) ([]Filament, error)
	Save(ctx context.Context, filaments []Filament) error
}

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Registry is the in-memory, write-through filament catalogue.
type Registry struct {
	store        Store
	profilesPath string
	logger       Logger

	mu        sync.RWMutex
	filaments []Filament
}

// NewRegistry creates a registry persisting through store. profilesPath
// locates the print profile catalogue served by PrintProfiles.
func NewRegistry(store Store, profilesPath string) *Registry {
	return &Registry{
		store:        store,
		profilesPath: profilesPath,
		logger:       noopLogger{},
		filaments:    []Filament{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Load replaces the in-memory catalogue with the stored one.
func (r *Registry) Load(ctx context.Context) error {
	filaments, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading filaments: %w", err)
	}

	r.mu.Lock()
	r.filaments = filaments
	r.mu.Unlock()

	r.logger.Info("filament catalogue loaded", "count", len(filaments))
	return nil
}

// List returns every filament in collection order.
func (r *Registry) List() []Filament {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Filament, len(r.filaments))
	copy(out, r.filaments)
	return out
}

// Get returns the filament with the given fcid.
func (r *Registry) Get(fcid string) (Filament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(fcid); i >= 0 {
		return r.filaments[i], nil
	}
	return Filament{}, fmt.Errorf("%w: %q", ErrNotFound, fcid)
}

// Save validates f and stores it. An empty fcid gets a new UUID; a known
// fcid replaces the existing record in place.
func (r *Registry) Save(ctx context.Context, f Filament) (Filament, error) {
	f.FCID = strings.TrimSpace(f.FCID)
	if err := f.Validate(); err != nil {
		return Filament{}, err
	}
	if f.FCID == "" {
		f.FCID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Filament, len(r.filaments), len(r.filaments)+1)
	copy(next, r.filaments)

	replaced := false
	if i := r.index(f.FCID); i >= 0 {
		next[i] = f
		replaced = true
	} else {
		next = append(next, f)
	}

	if err := r.store.Save(ctx, next); err != nil {
		return Filament{}, fmt.Errorf("saving filaments: %w", err)
	}
	r.filaments = next

	r.logger.Info("filament saved", "fcid", f.FCID, "material", f.Material, "replaced", replaced)
	return f, nil
}

// Delete removes the filament with the given fcid.
func (r *Registry) Delete(ctx context.Context, fcid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(fcid)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, fcid)
	}

	next := make([]Filament, 0, len(r.filaments)-1)
	next = append(next, r.filaments[:i]...)
	next = append(next, r.filaments[i+1:]...)

	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("saving filaments: %w", err)
	}
	r.filaments = next

	r.logger.Info("filament deleted", "fcid", fcid)
	return nil
}

// GenerateFCID returns a short random identifier (8 hex characters) for
// labelling spools. It is not reserved; Save accepts it like any other fcid.
func (r *Registry) GenerateFCID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}

// PrintProfiles returns the print profile catalogue verbatim.
func (r *Registry) PrintProfiles(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.profilesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrProfilesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading print profiles: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("print profiles in %s are not valid JSON", r.profilesPath)
	}
	return json.RawMessage(data), nil
}

func (r *Registry) index(fcid string) int {
	for i, f := range r.filaments {
		if f.FCID == fcid {
			return i
		}
	}
	return -1
}
