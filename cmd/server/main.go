package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/renovate-initializr/internal/application"
	"github.com/eugenenazirov/renovate-initializr/internal/config"
	"github.com/eugenenazirov/renovate-initializr/internal/logging"
	"github.com/eugenenazirov/renovate-initializr/internal/siteconfig"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("renovate-initializr", "Renovate Initializr - serves the renovate.json generator site and its feedback API")

	serveCmd := kingpinApp.Command("serve", "Start the HTTP server").Default()
	configFile := serveCmd.Flag("config", "Path to YAML configuration file").String()
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	baseURL := serveCmd.Flag("base-url", "Base URL the site is served under (overrides BASE_URL)").String()
	staticDir := serveCmd.Flag("static-dir", "Directory holding the built site").String()
	logLevel := serveCmd.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	siteCmd := kingpinApp.Command("site-config", "Print the resolved site configuration document")
	siteBaseURL := siteCmd.Flag("base-url", "Base URL the site is served under (overrides BASE_URL)").String()
	siteFormat := siteCmd.Flag("format", "Output format").Default("json").Enum("json", "yaml", "yml")

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))
	if command == siteCmd.FullCommand() {
		if err := printSiteConfig(os.Stdout, os.Environ(), *siteBaseURL, *siteFormat); err != nil {
			kingpinApp.Fatalf("%v", err)
		}
		return
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *baseURL != "" {
		overrides.BaseURL = baseURL
	}

	if *staticDir != "" {
		overrides.StaticDir = staticDir
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	logger.Info("site configuration resolved",
		zap.String("base_url", cfg.Site.BaseURL),
		zap.String("preset", cfg.Site.DeploymentPreset),
	)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)

	if err := app.Close(); err != nil {
		logger.Warn("failed to release feedback cache", zap.Error(err))
	}
}

// printSiteConfig writes the framework document for the site resolved from environ.
func printSiteConfig(w io.Writer, environ []string, baseURL, format string) error {
	f, err := siteconfig.ParseFormat(format)
	if err != nil {
		return err
	}

	overrides := &config.CLIOverrides{}
	if baseURL != "" {
		overrides.BaseURL = &baseURL
	}
	site := config.ResolveSite(environ, overrides)
	return site.Encode(w, f)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
