package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Connection constants.
const (
	// defaultConnectTimeout applies when SessionConfig.ConnectTimeout is zero.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds subscribe and publish acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight work (milliseconds).
	disconnectQuiesce = 250

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// clientIDPrefix marks FilaCore sessions on the printer.
	clientIDPrefix = "filacore-"
)

// SessionConfig describes the broker of one printer.
type SessionConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// CertPath is the PEM bundle used as the trust anchor.
	CertPath string

	// VerifyHostname enables the host name check (see LoadTLSConfig).
	VerifyHostname bool

	// QoS is used for both subscribe and publish.
	QoS byte

	ConnectTimeout time.Duration

	// ClientID defaults to a random "filacore-xxxxxxxx".
	ClientID string
}

func (c SessionConfig) brokerURL() string {
	return "ssl://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c SessionConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return defaultConnectTimeout
}

// buildClientOptions creates paho options for one short-lived session.
//
// Sessions never reconnect: a lost connection ends the exchange and the
// caller opens a new session next time.
func buildClientOptions(cfg SessionConfig, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = clientIDPrefix + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)

	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.connectTimeout())
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetTLSConfig(tlsConfig)

	return opts
}

func validateQoS(qos byte) error {
	if qos > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	return nil
}
