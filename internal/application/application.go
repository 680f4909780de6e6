package application

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/renovate-initializr/internal/api"
	"github.com/eugenenazirov/renovate-initializr/internal/config"
	"github.com/eugenenazirov/renovate-initializr/internal/feedback"
	"github.com/eugenenazirov/renovate-initializr/internal/openai"
	"github.com/eugenenazirov/renovate-initializr/internal/siteconfig"
	"github.com/eugenenazirov/renovate-initializr/internal/storage"
	"github.com/eugenenazirov/renovate-initializr/internal/validation"
)

//go:embed templates/index.html
var templates embed.FS

var landingTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

const redisConnectTimeout = 5 * time.Second

// App encapsulates the application dependencies and HTTP server.
type App struct {
	store     storage.Store
	validator *validation.Validator
	feedback  *feedback.Service
	handler   *api.Handler
	router    http.Handler
	logger    *zap.Logger
	server    *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	validator, err := validation.NewValidator(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load renovate schema: %w", err)
	}

	store, err := newStore(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback cache: %w", err)
	}

	svc, err := newFeedbackService(cfg.OpenAI, store, logger)
	if err != nil {
		closeStore(store, logger)
		return nil, fmt.Errorf("failed to configure feedback service: %w", err)
	}

	handlerOpts := []api.HandlerOption{api.WithHandlerLogger(logger)}
	if svc != nil {
		handlerOpts = append(handlerOpts, api.WithFeedback(svc))
	}
	handler := api.NewHandler(cfg.Site, validator, handlerOpts...)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler, err := BuildRootHandler(cfg.Site, cfg.StaticDir, svc != nil, apiRouter)
	if err != nil {
		closeStore(store, logger)
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &App{
		store:     store,
		validator: validator,
		feedback:  svc,
		handler:   handler,
		router:    apiRouter,
		logger:    logger,
		server:    NewServer(cfg, rootHandler),
	}, nil
}

// newStore picks the feedback cache backend: Redis when an address is set,
// otherwise an in-memory LRU unless the size is zero.
func newStore(cfg config.CacheConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if cfg.Size > 0 {
		logger.Info("feedback cache enabled", zap.String("backend", "memory"), zap.Int("size", cfg.Size), zap.Duration("ttl", cfg.TTL))
		return storage.NewMemoryStore(cfg.Size, cfg.TTL), nil
	}
	logger.Info("feedback cache disabled")
	return nil, nil
}

// newFeedbackService returns nil when no API key is configured.
func newFeedbackService(cfg config.OpenAIConfig, store storage.Store, logger *zap.Logger) (*feedback.Service, error) {
	client, err := openai.NewClient(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if errors.Is(err, openai.ErrMissingAPIKey) {
		logger.Warn("OPENAI_API_KEY is not set, feedback endpoint disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var opts []feedback.Option
	if store != nil {
		opts = append(opts, feedback.WithCache(store))
	}
	logger.Info("feedback service enabled", zap.String("model", client.Model()))
	return feedback.NewService(client, feedback.Config{
		Model:           client.Model(),
		MaxOutputTokens: cfg.MaxOutputTokens,
		ReasoningEffort: cfg.ReasoningEffort,
	}, logger, opts...), nil
}

// BuildRootHandler constructs the root HTTP handler that routes API requests
// and serves the site under its mount path, either from staticDir or as an
// embedded landing page when staticDir is empty.
func BuildRootHandler(site siteconfig.EffectiveConfig, staticDir string, feedbackEnabled bool, apiHandler http.Handler) (http.Handler, error) {
	mount, err := site.MountPath()
	if err != nil {
		return nil, err
	}

	var siteHandler http.Handler
	if staticDir != "" {
		staticPath, err := resolveStaticDir(staticDir)
		if err != nil {
			return nil, err
		}
		siteHandler = http.StripPrefix(strings.TrimSuffix(mount, "/"), http.FileServer(http.Dir(staticPath)))
	} else {
		page, err := renderLanding(site, mount, feedbackEnabled)
		if err != nil {
			return nil, err
		}
		siteHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != mount {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(page)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/metrics", apiHandler)
	bare := strings.TrimSuffix(mount, "/")
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bare != "" && r.URL.Path == bare {
			target := mount
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		if !strings.HasPrefix(r.URL.Path, mount) {
			http.NotFound(w, r)
			return
		}
		siteHandler.ServeHTTP(w, r)
	}))

	return mux, nil
}

type landingData struct {
	Title           string
	Description     string
	BaseHref        string
	FeedbackEnabled bool
}

func renderLanding(site siteconfig.EffectiveConfig, mount string, feedbackEnabled bool) ([]byte, error) {
	var buf bytes.Buffer
	err := landingTemplate.Execute(&buf, landingData{
		Title:           site.Title,
		Description:     site.MetaDescription,
		BaseHref:        mount,
		FeedbackEnabled: feedbackEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("render landing page: %w", err)
	}
	return buf.Bytes(), nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the feedback cache. Call it after the server has shut down.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func closeStore(store storage.Store, logger *zap.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("failed to close feedback cache", zap.Error(err))
	}
}

// resolveStaticDir accepts an absolute directory or one relative to the project root.
func resolveStaticDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		info, err := os.Stat(dir)
		if err != nil {
			return "", fmt.Errorf("static dir: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("static dir %s is not a directory", dir)
		}
		return dir, nil
	}
	return resolveProjectPath(dir)
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
