// Package mqtt provides TLS MQTT sessions to the broker embedded in each
// printer.
//
// Printers do not speak HTTP. They run an MQTT broker on port 8883, accept
// commands on device/{serial}/request and publish state and
// acknowledgements on device/{serial}/report. The username is fixed ("bblp")
// and the password is the printer's access code.
//
// A Session is deliberately short-lived: open, subscribe, publish, wait,
// close. There is no reconnection, no persistence and no retained
// publishing.
//
// # Lifecycle
//
//	Idle → Connecting → Connected → Subscribed → Closed
//	          └────────────────────────────────────┘ (handshake failure)
//
// # Security Considerations
//
// Printer certificates are self-signed and name the serial rather than the
// printer's address. The bundle captured by the certs package is the only
// trust anchor and the chain is always verified against it; the host name
// check is off unless printers.tls.verify_hostname is set. This is an
// accepted trade-off, not an oversight. Access codes are credentials and are
// never logged.
//
// # Usage
//
//	s, err := mqtt.Open(ctx, mqtt.SessionConfig{
//	    Host: "10.0.0.5", Port: 8883,
//	    Username: "bblp", Password: accessCode,
//	    CertPath: "static/printers/Printer1/blcert.pem",
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	topics := mqtt.Topics{}
//	err = s.Subscribe(topics.DeviceReport(serial), func(topic string, payload []byte) error {
//	    return nil
//	})
package mqtt
