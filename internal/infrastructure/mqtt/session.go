package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// State is the lifecycle position of a Session.
type State int

// Session states. Connecting may go straight to Closed when the handshake
// fails.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutine, concurrently with whoever is
// waiting for them, and must not block. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Session is one TLS MQTT connection to one printer.
//
// A session is opened, used for one or more subscribe/publish exchanges, and
// closed. It never reconnects. All methods are safe for concurrent use.
type Session struct {
	cfg    SessionConfig
	client pahomqtt.Client

	mu    sync.RWMutex
	state State

	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Open connects to the printer broker described by cfg.
//
// It loads the trust bundle, performs the TLS and MQTT handshakes and returns
// a connected session. On any failure everything opened so far is released
// and an error wrapping ErrCertificate or ErrConnectionFailed is returned.
// ctx aborts the handshake early.
func Open(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if err := validateQoS(cfg.QoS); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg, state: StateIdle}

	tlsConfig, err := LoadTLSConfig(cfg.CertPath, cfg.Host, cfg.VerifyHostname)
	if err != nil {
		s.setState(StateClosed)
		return nil, err
	}

	s.setState(StateConnecting)
	s.client = pahomqtt.NewClient(buildClientOptions(cfg, tlsConfig))

	timeout := cfg.connectTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-timer.C:
		s.Close() //nolint:errcheck // releasing a half-open client
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, cfg.brokerURL(), timeout)
	case <-ctx.Done():
		s.Close() //nolint:errcheck // releasing a half-open client
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.brokerURL(), ctx.Err())
	}
	if err := token.Error(); err != nil {
		s.Close() //nolint:errcheck // releasing a half-open client
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.brokerURL(), err)
	}

	s.mu.Lock()
	if s.state == StateConnecting {
		s.state = StateConnected
	}
	s.mu.Unlock()

	return s, nil
}

// Subscribe registers handler for topic and waits for the broker's SUBACK.
// Only after it returns are messages on topic guaranteed to be delivered.
func (s *Session) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if err := s.ready(); err != nil {
		return err
	}

	token := s.client.Subscribe(topic, s.cfg.QoS, s.wrapHandler(handler))
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	s.mu.Lock()
	if s.state == StateConnected {
		s.state = StateSubscribed
	}
	s.mu.Unlock()
	return nil
}

// Publish sends payload to topic (not retained) and waits until paho has
// handed it to the network, or the broker acknowledged it for QoS > 0.
func (s *Session) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if err := s.ready(); err != nil {
		return err
	}

	token := s.client.Publish(topic, s.cfg.QoS, false, payload)
	if !token.WaitTimeout(defaultOperationTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultOperationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Close disconnects from the broker. It is idempotent and safe on a session
// whose Open failed part way. After Close no handler is invoked.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		if s.client != nil {
			s.client.Disconnect(disconnectQuiesce)
		}
	})
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsOpen reports whether the session is connected and not closed.
func (s *Session) IsOpen() bool {
	st := s.State()
	return (st == StateConnected || st == StateSubscribed) && s.client.IsConnectionOpen()
}

// SetLogger sets a logger for handler errors and panics.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// ready reports whether subscribe and publish are allowed.
func (s *Session) ready() error {
	switch s.State() {
	case StateClosed:
		return ErrClosed
	case StateConnected, StateSubscribed:
	default:
		return ErrNotConnected
	}
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

// wrapHandler wraps a MessageHandler with panic recovery, optional logging
// and a closed-session guard.
func (s *Session) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if s.State() == StateClosed {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				if logger := s.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := s.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
