// FilaCore - Printer Command Bridge
//
// This is the main entry point for FilaCore. It serves the REST API that
// manages printers and the spool catalogue, and bridges commands to the MQTT
// broker embedded in each printer over per-command TLS sessions.
//
// Usage:
//
//	filacore [--config path]
//	filacore token --role operator [--subject name] [--ttl 24h]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/canny86/FilaCore/internal/api"
	"github.com/canny86/FilaCore/internal/auth"
	"github.com/canny86/FilaCore/internal/certs"
	"github.com/canny86/FilaCore/internal/command"
	"github.com/canny86/FilaCore/internal/filament"
	"github.com/canny86/FilaCore/internal/history"
	"github.com/canny86/FilaCore/internal/infrastructure/config"
	"github.com/canny86/FilaCore/internal/infrastructure/database"
	"github.com/canny86/FilaCore/internal/infrastructure/influxdb"
	"github.com/canny86/FilaCore/internal/infrastructure/jsonstore"
	"github.com/canny86/FilaCore/internal/infrastructure/logging"
	"github.com/canny86/FilaCore/internal/printer"
	"github.com/canny86/FilaCore/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to the token subcommand or the server. It is separated
// from main for testability.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) > 0 && args[0] == "token" {
		return runToken(args[1:], out)
	}

	flags := pflag.NewFlagSet("filacore", pflag.ContinueOnError)
	flags.SetOutput(out)
	configPath := flags.StringP("config", "c", getConfigPath(), "path to the YAML configuration file")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Fprintf(out, "filacore %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// An explicitly named file must exist; the default one is optional.
	explicit := flags.Changed("config") || os.Getenv("FILACORE_CONFIG") != ""
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		return err
	}

	return serve(ctx, cfg, *configPath)
}

// serve wires every component and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting FilaCore",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	// Command history
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo)
	recorder.SetLogger(log.With("component", "history"))

	// Certificates
	certStore := certs.NewStore(cfg.Storage.CertRoot, cfg.Storage.CertFileName)
	provisioner := certs.NewProvisioner(certs.Config{
		Binary:  cfg.Certificates.Binary,
		Port:    cfg.Certificates.Port,
		Timeout: config.Seconds(cfg.Certificates.Timeout),
	}, certStore)
	provisioner.SetLogger(log.With("component", "certs"))
	defer func() {
		log.Info("waiting for certificate provisioning")
		provisioner.Wait()
	}()

	// Registries
	printers := printer.NewRegistry(jsonstore.New[printer.Printer](cfg.PrintersPath()), provisioner)
	printers.SetLogger(log.With("component", "printers"))
	if loadErr := printers.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading printers: %w", loadErr)
	}

	filaments := filament.NewRegistry(jsonstore.New[filament.Filament](cfg.FilamentsPath()), cfg.ProfilesPath())
	filaments.SetLogger(log.With("component", "filaments"))
	if loadErr := filaments.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading filaments: %w", loadErr)
	}
	log.Info("registries loaded",
		"printers", len(printers.List()),
		"filaments", len(filaments.List()),
	)

	// Command bridge
	bridge := command.NewBridge(command.Config{
		Port:              cfg.Printers.Port,
		Username:          cfg.Printers.Username,
		QoS:               byte(cfg.Printers.QoS), // #nosec G115 -- validated to 0..2
		ConnectTimeout:    config.Seconds(cfg.Printers.ConnectTimeout),
		VerifyHostname:    cfg.Printers.TLS.VerifyHostname,
		SerializeCommands: cfg.Printers.SerializeCommands,
	}, command.MQTTDialer(log.With("component", "mqtt")), certStore)
	bridge.SetLogger(log.With("component", "bridge"))
	bridge.AddObserver(recorder)

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bridge.AddObserver(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	commands := command.NewService(bridge, printers, filaments, command.Timeouts{
		State:    config.Seconds(cfg.Printers.StateTimeout),
		Filament: config.Seconds(cfg.Printers.FilamentTimeout),
		Stream:   config.Seconds(cfg.WebSocket.StreamDuration),
	})

	// HTTP API
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Printers:  printers,
		Filaments: filaments,
		Certs:     provisioner,
		Commands:  commands,
		History:   historyRepo,
		DB:        db,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.Security.JWT.Secret == "" {
		log.Warn("authentication disabled, every API caller has full access")
	}

	if err := healthCheck(ctx, db, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. Pending certificate provisioning
	// 4. Database

	return nil
}

// loadConfig reads the configuration. A missing file is only an error when
// the path was given explicitly.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	load := config.LoadOptional
	if explicit {
		load = config.Load
	}
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Uses FILACORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FILACORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// runToken mints an access token with the configured JWT secret and writes
// it to out.
func runToken(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("filacore token", pflag.ContinueOnError)
	flags.SetOutput(out)
	configPath := flags.StringP("config", "c", getConfigPath(), "path to the YAML configuration file")
	role := flags.String("role", string(auth.RoleOperator), "role granted by the token (viewer, operator, admin)")
	subject := flags.String("subject", "cli", "subject recorded in the token")
	ttl := flags.Duration("ttl", 0, "token lifetime (default security.jwt.token_ttl)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	explicit := flags.Changed("config") || os.Getenv("FILACORE_CONFIG") != ""
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		return err
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set, authentication is disabled")
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Security.JWT.TokenTTL) * time.Minute
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
