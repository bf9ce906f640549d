package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/canny86/FilaCore/internal/infrastructure/mqtt"
	"github.com/canny86/FilaCore/internal/printer"
)

// Session is the part of an MQTT session the bridge needs.
type Session interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte) error
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg mqtt.SessionConfig) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, cfg mqtt.SessionConfig) (Session, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, cfg mqtt.SessionConfig) (Session, error) {
	return f(ctx, cfg)
}

// MQTTDialer opens real TLS sessions. Handler errors and panics inside the
// sessions are reported to logger, which may be nil.
func MQTTDialer(logger mqtt.Logger) Dialer {
	return DialerFunc(func(ctx context.Context, cfg mqtt.SessionConfig) (Session, error) {
		s, err := mqtt.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			s.SetLogger(logger)
		}
		return s, nil
	})
}

// CertLocator finds stored certificate bundles. Implemented by certs.Store.
type CertLocator interface {
	Path(name string) (string, error)
	Exists(name string) bool
}

// Logger is the logging surface of the bridge.
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

// Config holds the connection settings shared by all printers.
type Config struct {
	Port           int
	Username       string
	QoS            byte
	ConnectTimeout time.Duration
	VerifyHostname bool

	// SerializeCommands lets at most one command per printer run at a time.
	SerializeCommands bool
}

// Bridge executes commands against printers.
//
// Each Execute opens its own session. Unless Config.SerializeCommands is
// set, overlapping calls for the same printer are not coordinated.
type Bridge struct {
	cfg       Config
	dialer    Dialer
	certs     CertLocator
	logger    Logger
	gate      *gate
	observers []Observer
	topics    mqtt.Topics
}

// NewBridge creates a bridge.
func NewBridge(cfg Config, dialer Dialer, certs CertLocator) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		dialer: dialer,
		certs:  certs,
		logger: noopLogger{},
	}
	if cfg.SerializeCommands {
		b.gate = newGate()
	}
	return b
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// AddObserver registers o to hear about every execution. Not safe to call
// concurrently with Execute.
func (b *Bridge) AddObserver(o Observer) {
	b.observers = append(b.observers, o)
}

// Execute runs cmd against p and returns the first matching reply.
//
// The session is subscribed before the command is published, and the
// timeout starts once the command is out. The session is closed before
// Execute returns, whatever the outcome. ctx cancellation ends the wait
// early with ctx.Err().
func (b *Bridge) Execute(ctx context.Context, p printer.Printer, cmd Command, timeout time.Duration) (Reply, error) {
	exec := Execution{
		Serial:     p.Serial,
		Command:    cmd.Name,
		SequenceID: cmd.SequenceID,
		Started:    time.Now(),
	}

	reply, err := b.execute(ctx, p, cmd, timeout)

	exec.Duration = time.Since(exec.Started)
	exec.Err = err
	b.notify(ctx, exec)

	return reply, err
}

func (b *Bridge) execute(ctx context.Context, p printer.Printer, cmd Command, timeout time.Duration) (Reply, error) {
	if cmd.Match == nil {
		return nil, errors.New("command: nil match function")
	}

	certPath, err := b.certPath(p)
	if err != nil {
		return nil, err
	}

	if b.gate != nil {
		release, err := b.gate.acquire(ctx, p.Serial, timeout)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	session, err := b.dialer.Dial(ctx, b.sessionConfig(p, certPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.Serial, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			b.logger.Warn("closing printer session", "serial", p.Serial, "error", cerr)
		}
	}()

	result := newHandoff()
	handler := func(topic string, payload []byte) error {
		if result.resolved() {
			return nil
		}
		msg, err := decodeReply(topic, payload)
		if err != nil {
			return err
		}
		if cmd.Match(msg) {
			result.resolve(msg)
		}
		return nil
	}

	if err := session.Subscribe(b.topics.DeviceReport(p.Serial), handler); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.Serial, err)
	}
	if err := session.Publish(b.topics.DeviceRequest(p.Serial), cmd.Payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.Serial, err)
	}

	b.logger.Debug("command published", "serial", p.Serial, "command", cmd.Name,
		"sequence_id", cmd.SequenceID, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-result.ch:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s %s after %v", ErrTimeout, p.Serial, cmd.Name, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream subscribes to the report topic of p and passes every decoded
// report to fn until duration passes, ctx ends or fn returns an error. The
// session is closed on return. Undecodable reports are skipped.
func (b *Bridge) Stream(ctx context.Context, p printer.Printer, duration time.Duration, fn func(Reply) error) error {
	certPath, err := b.certPath(p)
	if err != nil {
		return err
	}

	session, err := b.dialer.Dial(ctx, b.sessionConfig(p, certPath))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.Serial, err)
	}
	defer session.Close() //nolint:errcheck // nothing useful to do on teardown

	// Reports are queued so a slow consumer never blocks paho's delivery
	// goroutine; overflow is dropped.
	reports := make(chan Reply, 16)
	handler := func(topic string, payload []byte) error {
		msg, err := decodeReply(topic, payload)
		if err != nil {
			return err
		}
		select {
		case reports <- msg:
		default:
			b.logger.Debug("report stream consumer lagging, dropping report", "serial", p.Serial)
		}
		return nil
	}

	if err := session.Subscribe(b.topics.DeviceReport(p.Serial), handler); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, p.Serial, err)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	for {
		select {
		case msg := <-reports:
			if err := fn(msg); err != nil {
				return err
			}
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) certPath(p printer.Printer) (string, error) {
	if !b.certs.Exists(p.Name) {
		return "", fmt.Errorf("%w: %s", ErrCertificateMissing, p.Name)
	}
	path, err := b.certs.Path(p.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCertificateMissing, err)
	}
	return path, nil
}

func (b *Bridge) sessionConfig(p printer.Printer, certPath string) mqtt.SessionConfig {
	return mqtt.SessionConfig{
		Host:           p.IP,
		Port:           b.cfg.Port,
		Username:       b.cfg.Username,
		Password:       p.AccessCode,
		CertPath:       certPath,
		VerifyHostname: b.cfg.VerifyHostname,
		QoS:            b.cfg.QoS,
		ConnectTimeout: b.cfg.ConnectTimeout,
	}
}

func (b *Bridge) notify(ctx context.Context, exec Execution) {
	if exec.Err != nil {
		b.logger.Warn("printer command failed", "serial", exec.Serial, "command", exec.Command,
			"duration", exec.Duration, "error", exec.Err)
	} else {
		b.logger.Info("printer command completed", "serial", exec.Serial, "command", exec.Command,
			"duration", exec.Duration)
	}

	for _, o := range b.observers {
		o.CommandExecuted(context.WithoutCancel(ctx), exec)
	}
}

// decodeReply decodes one report. The printer only ever reports JSON
// objects, so arrays, scalars and null are rejected like malformed JSON.
func decodeReply(topic string, payload []byte) (Reply, error) {
	var msg Reply
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decoding report on %s: %w", topic, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("decoding report on %s: not a JSON object", topic)
	}
	return msg, nil
}

// handoff carries exactly one reply from the delivery goroutine to the waiter.
type handoff struct {
	ch   chan Reply
	once sync.Once
	done chan struct{}
}

func newHandoff() *handoff {
	return &handoff{ch: make(chan Reply, 1), done: make(chan struct{})}
}

func (h *handoff) resolve(r Reply) {
	h.once.Do(func() {
		h.ch <- r
		close(h.done)
	})
}

func (h *handoff) resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// gate serialises executions per printer serial.
type gate struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newGate() *gate {
	return &gate{slots: make(map[string]chan struct{})}
}

func (g *gate) acquire(ctx context.Context, serial string, wait time.Duration) (func(), error) {
	g.mu.Lock()
	slot, ok := g.slots[serial]
	if !ok {
		slot = make(chan struct{}, 1)
		g.slots[serial] = slot
	}
	g.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrBusy, serial)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
