package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/config"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/logger"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/server"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/session"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	lb := logger.New().Level(cfg.Log.Level)
	if cfg.Log.File != "" {
		lb = lb.FromPath(cfg.Log.File)
	}
	l, err := lb.Make()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	err = run(cfg, l.Logger)
	if err != nil {
		l.Logger.Error().Err(err).Msg("editor MCP server stopped")
	}
	l.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.RequestTimeout, log)
	if cfg.Backend.AccessToken != "" {
		client.SetAccessToken(cfg.Backend.AccessToken)
	}

	opts := session.Options{
		Client:          client,
		PersistDebounce: cfg.PersistDebounce,
		Logger:          log,
	}
	if cfg.UseLocalStorage {
		store, err := storage.OpenDrafts(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open draft storage: %w", err)
		}
		opts.Drafts = store
	}

	sess, err := session.Open(opts)
	if err != nil {
		if opts.Drafts != nil {
			opts.Drafts.Close()
		}
		return err
	}
	// The session owns the draft store: pending drafts are flushed, then the
	// store is closed.
	defer sess.Close()

	srv := server.New(sess)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cfg.Transport {
	case "stdio":
		log.Info().Str("backend", cfg.Backend.URL).Msg("editor MCP server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case "http":
		return serveHTTP(ctx, srv, ":"+cfg.Port, log)
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", cfg.Transport)
	}
}

func serveHTTP(ctx context.Context, srv *mcp.Server, addr string, log zerolog.Logger) error {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": server.Version})
	}).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Dur("duration", time.Since(start)).Msg("http request")
		})
	})

	hs := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("editor MCP server listening")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
