// Package certs acquires and stores the TLS certificate each printer presents
// on its MQTT port.
//
// Printers ship self-signed certificates, so there is no CA to trust. Instead
// FilaCore runs a TLS probe against the printer once, keeps the chain it saw
// as a PEM bundle under {cert_root}/{name}/blcert.pem, and later uses that
// bundle as the trust anchor for broker sessions.
//
// Acquisition failures never crash the caller. Background provisioning,
// started when a printer is registered or activated, only logs its outcome.
package certs
