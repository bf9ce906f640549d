// Package config loads FilaCore settings.
//
// Values are layered: built-in defaults, then the YAML file, then FILACORE_*
// environment variables. Validate runs last and reports every problem at
// once.
//
// Keep the JWT secret out of the file and set FILACORE_JWT_SECRET instead.
// printers.tls.verify_hostname defaults to false: printer certificates are
// issued for the serial rather than the LAN address, so the stored bundle is
// the trust anchor.
//
//	cfg, err := config.LoadOptional("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	store := jsonstore.New[printer.Printer](cfg.PrintersPath())
package config
