package printer

import (
	"context"
	"fmt"
	"sync"
)

// Store persists the whole printer collection.
type Store interface {
	Load(ctx context.Context) ([]Printer, error)
	Save(ctx context.Context, printers []Printer) error
}

// Certificates manages the per-printer certificate directory. Implemented by
// certs.Provisioner.
type Certificates interface {
	EnsureDir(name string) error
	RemoveDir(name string) error
	Exists(name string) bool
	ProvisionAsync(ip, name string)
}

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopCertificates struct{}

func (noopCertificates) EnsureDir(string) error        { return nil }
func (noopCertificates) RemoveDir(string) error        { return nil }
func (noopCertificates) Exists(string) bool            { return false }
func (noopCertificates) ProvisionAsync(string, string) {}

// ActivateResult reports the outcome of SetActive.
type ActivateResult struct {
	Printer Printer

	// CertificatePresent is false when a certificate was missing and
	// provisioning has been started in the background.
	CertificatePresent bool
}

// Registry is the in-memory, write-through printer collection.
//
// All public methods are thread-safe. Records are returned by value.
type Registry struct {
	store  Store
	certs  Certificates
	logger Logger

	mu       sync.RWMutex
	printers []Printer // collection order as persisted
}

// NewRegistry creates a registry persisting through store. certs may be nil.
func NewRegistry(store Store, certs Certificates) *Registry {
	if certs == nil {
		certs = noopCertificates{}
	}
	return &Registry{
		store:    store,
		certs:    certs,
		logger:   noopLogger{},
		printers: []Printer{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Load replaces the in-memory collection with the stored one. Collections
// written by older tools may carry several active flags; only the first one
// is kept.
func (r *Registry) Load(ctx context.Context) error {
	printers, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading printers: %w", err)
	}

	seenActive := false
	for i := range printers {
		if !printers[i].Active {
			continue
		}
		if seenActive {
			r.logger.Warn("clearing extra active flag", "serial", printers[i].Serial)
			printers[i].Active = false
		}
		seenActive = true
	}

	r.mu.Lock()
	r.printers = printers
	r.mu.Unlock()

	r.logger.Info("printer registry loaded", "count", len(printers))
	return nil
}

// List returns every printer in collection order.
func (r *Registry) List() []Printer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Printer, len(r.printers))
	copy(out, r.printers)
	return out
}

// Get returns the printer with the given serial.
func (r *Registry) Get(serial string) (Printer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexBySerial(serial); i >= 0 {
		return r.printers[i], nil
	}
	return Printer{}, fmt.Errorf("%w: serial %q", ErrNotFound, serial)
}

// GetByName returns the printer with the given name.
func (r *Registry) GetByName(name string) (Printer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.printers {
		if p.Name == name {
			return p, nil
		}
	}
	return Printer{}, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

// Active returns the active printer or ErrNoActivePrinter.
func (r *Registry) Active() (Printer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.printers {
		if p.Active {
			return p, nil
		}
	}
	return Printer{}, ErrNoActivePrinter
}

// Add registers a new printer. The record is normalised and validated, must
// not reuse a serial or name, and starts inactive. After the collection is
// saved the certificate directory is created and certificate provisioning
// starts in the background; neither outcome is reported to the caller.
func (r *Registry) Add(ctx context.Context, p Printer) (Printer, error) {
	p.Normalise()
	p.Active = false
	if err := p.Validate(); err != nil {
		return Printer{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.printers {
		if existing.Serial == p.Serial {
			return Printer{}, fmt.Errorf("%w: %s", ErrDuplicateSerial, p.Serial)
		}
		if existing.Name == p.Name {
			return Printer{}, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
	}

	next := make([]Printer, len(r.printers), len(r.printers)+1)
	copy(next, r.printers)
	next = append(next, p)

	if err := r.commit(ctx, next); err != nil {
		return Printer{}, err
	}

	if err := r.certs.EnsureDir(p.Name); err != nil {
		r.logger.Warn("creating certificate directory failed", "printer", p.Name, "error", err)
	}
	r.certs.ProvisionAsync(p.IP, p.Name)

	r.logger.Info("printer added", "serial", p.Serial, "name", p.Name, "ip", p.IP)
	return p, nil
}

// Remove deletes the printer and its certificate directory.
func (r *Registry) Remove(ctx context.Context, serial string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexBySerial(serial)
	if i < 0 {
		return fmt.Errorf("%w: serial %q", ErrNotFound, serial)
	}
	removed := r.printers[i]

	next := make([]Printer, 0, len(r.printers)-1)
	next = append(next, r.printers[:i]...)
	next = append(next, r.printers[i+1:]...)

	if err := r.commit(ctx, next); err != nil {
		return err
	}

	if removed.Name != "" {
		if err := r.certs.RemoveDir(removed.Name); err != nil {
			r.logger.Warn("removing certificate directory failed", "printer", removed.Name, "error", err)
		}
	}

	r.logger.Info("printer removed", "serial", removed.Serial, "name", removed.Name)
	return nil
}

// SetActive marks one printer active and every other one inactive in a
// single collection write. If the printer has no certificate yet,
// provisioning starts in the background.
func (r *Registry) SetActive(ctx context.Context, serial string) (ActivateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexBySerial(serial)
	if i < 0 {
		return ActivateResult{}, fmt.Errorf("%w: serial %q", ErrNotFound, serial)
	}

	next := make([]Printer, len(r.printers))
	copy(next, r.printers)
	for j := range next {
		next[j].Active = j == i
	}

	if err := r.commit(ctx, next); err != nil {
		return ActivateResult{}, err
	}

	active := next[i]
	res := ActivateResult{Printer: active, CertificatePresent: r.certs.Exists(active.Name)}
	if !res.CertificatePresent {
		if err := r.certs.EnsureDir(active.Name); err != nil {
			r.logger.Warn("creating certificate directory failed", "printer", active.Name, "error", err)
		}
		r.certs.ProvisionAsync(active.IP, active.Name)
	}

	r.logger.Info("active printer set", "serial", active.Serial, "name", active.Name,
		"certificate_present", res.CertificatePresent)
	return res, nil
}

// commit saves next and, only on success, makes it the live collection.
// Callers hold r.mu.
func (r *Registry) commit(ctx context.Context, next []Printer) error {
	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("saving printers: %w", err)
	}
	r.printers = next
	return nil
}

func (r *Registry) indexBySerial(serial string) int {
	for i, p := range r.printers {
		if p.Serial == serial {
			return i
		}
	}
	return -1
}
