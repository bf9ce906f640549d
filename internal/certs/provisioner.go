package certs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/canny86/FilaCore/internal/process"
)

// Logger is the logging surface used by the provisioner.
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

// Config configures the TLS probe.
type Config struct {
	// Binary is the probe executable, "openssl" unless overridden.
	Binary string

	// Port is the printer port to probe.
	Port int

	// Timeout bounds one probe run.
	Timeout time.Duration
}

// Provisioner fetches certificate chains from printers and stores them.
type Provisioner struct {
	cfg    Config
	store  *Store
	runner *process.Runner
	logger Logger

	mu      sync.Mutex
	running map[string]*inflight

	// wg tracks detached provisioning runs so shutdown can wait for them.
	wg sync.WaitGroup
}

// NewProvisioner creates a Provisioner writing bundles into store.
func NewProvisioner(cfg Config, store *Store) *Provisioner {
	return &Provisioner{
		cfg:     cfg,
		store:   store,
		runner:  process.NewRunner(nil),
		logger:  noopLogger{},
		running: make(map[string]*inflight),
	}
}

// SetLogger sets the logger for the provisioner and its probe runner.
func (p *Provisioner) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	p.logger = logger
	p.runner = process.NewRunner(logger)
}

// Store returns the bundle store.
func (p *Provisioner) Store() *Store {
	return p.store
}

// Fetch runs the probe against ip and returns the PEM bundle it presented.
// A zero timeout falls back to the configured one.
func (p *Provisioner) Fetch(ctx context.Context, ip string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = p.cfg.Timeout
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(p.cfg.Port))

	res, err := p.runner.Run(ctx, process.Config{
		Name:    "tls-probe",
		Binary:  p.cfg.Binary,
		Args:    []string{"s_client", "-showcerts", "-connect", addr},
		Timeout: timeout,
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, process.ErrTimeout):
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, addr, timeout)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	if len(res.Stderr) > 0 {
		p.logger.Debug("tls probe stderr", "addr", addr, "exit_code", res.ExitCode, "stderr", string(res.Stderr))
	}
	if len(res.Stdout) == 0 {
		return nil, fmt.Errorf("%w: %s (exit code %d)", ErrNoOutput, addr, res.ExitCode)
	}

	bundle := ExtractCertificates(res.Stdout)
	if bundle == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCertificates, addr)
	}
	return bundle, nil
}

// Provision fetches the chain from ip and stores it for the printer name,
// overwriting any earlier bundle. The directory is created when missing.
func (p *Provisioner) Provision(ctx context.Context, ip, name string) error {
	return p.provision(ctx, ip, name, p.store.Write)
}

func (p *Provisioner) provision(ctx context.Context, ip, name string, save func(string, []byte) error) error {
	if _, err := p.store.Dir(name); err != nil {
		return err
	}

	bundle, err := p.Fetch(ctx, ip, 0)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := save(name, bundle); err != nil {
		return err
	}

	path, _ := p.store.Path(name) //nolint:errcheck // name validated above
	p.logger.Info("certificate stored", "printer", name, "ip", ip, "path", path)
	return nil
}

// ProvisionAsync fetches and stores the bundle for name on a detached
// goroutine and returns immediately. The outcome is logged and never
// reported to the caller.
//
// The bundle only lands in an existing directory: RemoveDir cancels the run
// for that name, and a run that finishes anyway finds no directory to write
// into. A newer ProvisionAsync for the same name cancels the older one.
func (p *Provisioner) ProvisionAsync(ip, name string) {
	ctx, cancel := context.WithCancel(context.Background())
	run := &inflight{cancel: cancel}

	p.mu.Lock()
	if prev := p.running[name]; prev != nil {
		prev.cancel()
	}
	p.running[name] = run
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.finish(name, run)

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: panic: %v", ErrProcess, r)
				}
			}()
			return p.provision(ctx, ip, name, p.store.Replace)
		}()

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, ErrNoDirectory):
			p.logger.Debug("background certificate provisioning abandoned",
				"printer", name, "ip", ip, "error", err)
		default:
			p.logger.Warn("background certificate provisioning failed",
				"printer", name, "ip", ip, "error", err)
		}
	}()
}

// inflight is one detached provisioning run.
type inflight struct {
	cancel context.CancelFunc
}

func (p *Provisioner) finish(name string, run *inflight) {
	run.cancel()
	p.mu.Lock()
	if p.running[name] == run {
		delete(p.running, name)
	}
	p.mu.Unlock()
}

// cancelRun stops the detached run for name, if any.
func (p *Provisioner) cancelRun(name string) {
	p.mu.Lock()
	if run := p.running[name]; run != nil {
		run.cancel()
		delete(p.running, name)
	}
	p.mu.Unlock()
}

// Wait blocks until every detached provisioning run has finished.
func (p *Provisioner) Wait() {
	p.wg.Wait()
}

// EnsureDir creates the certificate directory for a printer name.
func (p *Provisioner) EnsureDir(name string) error {
	return p.store.EnsureDir(name)
}

// RemoveDir cancels any background fetch for a printer name and deletes its
// certificate directory.
func (p *Provisioner) RemoveDir(name string) error {
	p.cancelRun(name)
	return p.store.RemoveDir(name)
}

// Exists reports whether a bundle is stored for a printer name.
func (p *Provisioner) Exists(name string) bool {
	return p.store.Exists(name)
}
