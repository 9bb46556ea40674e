package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"esign/internal/config"
	"esign/internal/docusign"
	"esign/internal/docusign/auth"
	"esign/internal/envelope"
	"esign/internal/httpapi"
	"esign/internal/logging"
	"esign/internal/observability"
	"esign/internal/store"
	fsstore "esign/internal/store/fs"
	pgstore "esign/internal/store/pg"
	"esign/internal/webhook"
)

// eventStore is what the receiver needs plus a readiness probe.
type eventStore interface {
	store.EventStore
	Check(ctx context.Context) error
}

func main() {
	cfg := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st eventStore
		db *pgxpool.Pool
	)
	switch cfg.StoreBackend {
	case "postgres":
		var err error
		db, err = pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			slog.Error("webhook db connect failed", "err", err)
			os.Exit(1)
		}
		pgst := pgstore.New(db)
		startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := pgst.EnsureSchema(startupCtx); err != nil {
			startupCancel()
			slog.Error("webhook schema init failed", "err", err)
			os.Exit(1)
		}
		startupCancel()
		st = pgst
	case "fs", "":
		fsst, err := fsstore.New(cfg.OutputDir)
		if err != nil {
			slog.Error("webhook output dir init failed", "err", err)
			os.Exit(1)
		}
		st = fsst
	default:
		slog.Error("unknown store backend", "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	key, err := auth.LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		slog.Error("webhook private key load failed", "err", err)
		os.Exit(1)
	}
	tokens := &auth.Client{
		ClientID:     cfg.ClientID,
		UserID:       cfg.ImpersonatedUserID,
		AuthServer:   cfg.AuthServer,
		PrivateKey:   key,
		Scopes:       cfg.Scopes,
		ExpiryMargin: cfg.TokenExpiryMargin,
		HTTP:         &http.Client{Timeout: cfg.CallTimeout},
	}
	api := &docusign.Client{
		HTTP:     &http.Client{Timeout: cfg.CallTimeout},
		Sessions: tokens,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "docusign",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		CallTimeout: cfg.CallTimeout,
	}
	envelopes := &envelope.Service{API: api}

	reg := prometheus.DefaultRegisterer
	observability.Register(reg)

	receiver := &webhook.Receiver{
		Store:     st,
		HMACKey:   []byte(cfg.HMACKey),
		Documents: envelopes,
	}
	if cfg.HMACKey == "" {
		slog.Warn("no hmac key configured, webhook deliveries will not be verified")
	}

	s := httpapi.New()
	s.Mux.Use(httpapi.Metrics(observability.HTTPRequests))
	receiver.Register(s.Mux)
	s.Mux.HandleFunc("/healthz", httpapi.Healthz())
	s.Mux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second, st.Check))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(s.Mux),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("webhook shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("webhook listening", "port", cfg.Port, "store", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("webhook server failed", "err", err)
		os.Exit(1)
	}
	if db != nil {
		db.Close()
	}
}
