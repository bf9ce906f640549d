// Package mqtttest runs an in-process TLS MQTT broker that behaves like the
// broker embedded in a printer. It is meant for tests only.
package mqtttest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is a running test broker.
type Broker struct {
	// Host and Port locate the TLS listener.
	Host string
	Port int

	// BundlePath is a PEM file holding the broker certificate, usable as the
	// trust bundle of a session.
	BundlePath string

	server  *mqtt.Server
	tracker *connTracker
	subID   atomic.Int32
}

// Start launches a broker on a free loopback port and stops it when the test
// ends.
func Start(t testing.TB) *Broker {
	t.Helper()

	cert, certPEM := SelfSigned(t, "printer-test")
	bundle := filepath.Join(t.TempDir(), "blcert.pem")
	if err := os.WriteFile(bundle, certPEM, 0600); err != nil {
		t.Fatalf("writing bundle: %v", err)
	}

	port := freePort(t)
	server := mqtt.New(&mqtt.Options{InlineClient: true})
	server.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	tracker := &connTracker{}
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}
	if err := server.AddHook(tracker, nil); err != nil {
		t.Fatalf("adding tracker hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "printer-tls",
		Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		TLSConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		},
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("serving: %v", err)
	}
	t.Cleanup(func() { server.Close() }) //nolint:errcheck // test cleanup

	return &Broker{
		Host:       "127.0.0.1",
		Port:       port,
		BundlePath: bundle,
		server:     server,
		tracker:    tracker,
	}
}

// Publish sends payload on topic to every subscribed client.
func (b *Broker) Publish(topic string, payload []byte) error {
	return b.server.Publish(topic, payload, false, 0)
}

// OnPublish calls fn for every message clients publish matching filter.
func (b *Broker) OnPublish(t testing.TB, filter string, fn func(topic string, payload []byte)) {
	t.Helper()
	id := int(b.subID.Add(1))
	err := b.server.Subscribe(filter, id, func(_ *mqtt.Client, _ packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
	if err != nil {
		t.Fatalf("inline subscribe %s: %v", filter, err)
	}
}

// Connected returns the number of currently connected network clients.
func (b *Broker) Connected() int {
	return int(b.tracker.connected.Load())
}

// TotalConnections returns how many clients have connected so far.
func (b *Broker) TotalConnections() int {
	return int(b.tracker.total.Load())
}

// WaitForConnected polls until Connected() == n or the timeout passes.
func (b *Broker) WaitForConnected(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.Connected() == n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return b.Connected() == n
}

// Subscribed reports whether some client holds a subscription to topic.
func (b *Broker) Subscribed(topic string) bool {
	return b.tracker.subscribed(topic)
}

// WaitForSubscription polls until a client subscribed to topic.
func (b *Broker) WaitForSubscription(topic string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.Subscribed(topic) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return b.Subscribed(topic)
}

// connTracker counts network clients and their subscriptions.
type connTracker struct {
	mqtt.HookBase

	connected atomic.Int64
	total     atomic.Int64

	mu     sync.Mutex
	topics map[string]int
}

func (h *connTracker) ID() string { return "conn-tracker" }

func (h *connTracker) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnect,
		mqtt.OnDisconnect,
		mqtt.OnSubscribed,
	}, []byte{b})
}

func (h *connTracker) OnConnect(_ *mqtt.Client, _ packets.Packet) error {
	h.connected.Add(1)
	h.total.Add(1)
	return nil
}

func (h *connTracker) OnDisconnect(_ *mqtt.Client, _ error, _ bool) {
	h.connected.Add(-1)
}

func (h *connTracker) OnSubscribed(_ *mqtt.Client, pk packets.Packet, _ []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics == nil {
		h.topics = make(map[string]int)
	}
	for _, f := range pk.Filters {
		h.topics[f.Filter]++
	}
}

func (h *connTracker) subscribed(topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topics[topic] > 0
}

// SelfSigned returns a self-signed ECDSA certificate valid for 127.0.0.1 and
// localhost, plus its PEM encoding.
func SelfSigned(t testing.TB, commonName string) (tls.Certificate, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("generating serial: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("loading key pair: %v", err)
	}
	return pair, certPEM
}

// WriteForeignBundle writes a bundle holding an unrelated certificate, for
// exercising trust failures.
func WriteForeignBundle(t testing.TB) string {
	t.Helper()
	_, certPEM := SelfSigned(t, "someone-else")
	path := filepath.Join(t.TempDir(), "foreign.pem")
	if err := os.WriteFile(path, certPEM, 0600); err != nil {
		t.Fatalf("writing foreign bundle: %v", err)
	}
	return path
}

func freePort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close() //nolint:errcheck // only needed the port
	return port
}
