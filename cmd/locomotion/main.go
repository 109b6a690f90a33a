package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/locomotion-ai/locomotion/internal/api"
	"github.com/locomotion-ai/locomotion/internal/audit"
	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/backup"
	"github.com/locomotion-ai/locomotion/internal/config"
	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func main() {
	cfg := config.Parse()

	// Configure logging format.
	var logHandler slog.Handler
	if cfg.LogFormat == "text" {
		logHandler = slog.NewTextHandler(os.Stdout, nil)
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(logHandler))

	// Disable audit logging if configured.
	if !cfg.AuditLogs {
		audit.Enabled = false
	}

	// Open storage.
	store := openStore(cfg)

	// Seed roles (and optionally demo entities).
	if cfg.Seed {
		if err := storage.Seed(context.Background(), store, cfg.SeedDemo); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed database: %v\n", err)
			os.Exit(1)
		}
	}

	// Token verifier.
	verifier := createVerifier(cfg)

	// Profile resolution: policy + resolver + LRU cache.
	policy := profile.DefaultPolicy()
	if cfg.PolicyPath != "" {
		var err error
		policy, err = profile.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load policy: %v\n", err)
			os.Exit(1)
		}
		slog.Info("tenant-access policy loaded", "path", cfg.PolicyPath)
	}
	resolver := profile.NewResolver(store, policy)
	profiles, err := profile.NewCache(resolver, cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create profile cache: %v\n", err)
		os.Exit(1)
	}

	// Scheduled database backups (SQLite only).
	var stopBackups func()
	if cfg.BackupDir != "" && cfg.DBDriver == "sqlite" {
		runner, err := backup.NewRunner(store, cfg.BackupDir, cfg.BackupRetention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to set up backups: %v\n", err)
			os.Exit(1)
		}
		stopBackups = runner.Schedule(cfg.BackupInterval)
		slog.Info("backups enabled", "dir", cfg.BackupDir, "interval", cfg.BackupInterval, "retention", cfg.BackupRetention)
	}

	serverOpts := []api.ServerOption{api.WithSessionCookie(cfg.SessionCookie)}
	if cfg.AuthMode == "oidc" {
		// Advertise the provider's oauth2 endpoints on the sign-in route so
		// browser clients can start the flow without their own discovery.
		ep, err := auth.DiscoveryEndpoint(context.Background(), cfg.OIDCIssuer)
		if err != nil {
			slog.Warn("oidc endpoint discovery failed; sign-in route will not advertise provider endpoints", "error", err)
		} else {
			serverOpts = append(serverOpts, api.WithAuthEndpoints(ep))
		}
	}

	srv := api.NewServer(store, verifier, profiles, serverOpts...)

	// Initialize OpenTelemetry tracing if configured.
	var tp *sdktrace.TracerProvider
	handler := srv.Router()
	if cfg.OTLPEndpoint != "" {
		var initErr error
		tp, initErr = initTracer(context.Background(), cfg.OTLPEndpoint)
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize OpenTelemetry: %v\n", initErr)
			os.Exit(1)
		}
		handler = otelhttp.NewHandler(handler, "locomotion")
		slog.Info("OpenTelemetry tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())

		// Give in-flight requests 30 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		close(done)
	}()

	slog.Info("locomotion backend starting", "addr", cfg.Addr, "db_driver", cfg.DBDriver, "auth_mode", cfg.AuthMode)

	if cfg.TLS {
		err = httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown to complete.
	<-done

	if stopBackups != nil {
		stopBackups()
	}
	if tp != nil {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("tracer provider shutdown error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}
	slog.Info("shutdown complete")
}

// openStore builds the configured storage backend. Exits on error.
func openStore(cfg *config.Config) storage.Store {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			fmt.Fprintf(os.Stderr, "database-url is required when db-driver=postgres\n")
			os.Exit(1)
		}
		store, err := storage.NewPostgresStore(context.Background(), cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open postgres database: %v\n", err)
			os.Exit(1)
		}
		return store
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		return store
	default:
		fmt.Fprintf(os.Stderr, "db-driver must be 'sqlite' or 'postgres', got %q\n", cfg.DBDriver)
		os.Exit(1)
		return nil
	}
}

// createVerifier builds the token verifier from config. Exits on error.
func createVerifier(cfg *config.Config) auth.Verifier {
	switch cfg.AuthMode {
	case "jwt":
		if cfg.JWTSigningKey == "" {
			fmt.Fprintf(os.Stderr, "jwt-signing-key is required when auth-mode=jwt\n")
			os.Exit(1)
		}
		v, err := auth.NewJWTVerifier(auth.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create JWT verifier: %v\n", err)
			os.Exit(1)
		}
		slog.Info("auth mode: jwt", "issuer", cfg.JWTIssuer, "audience", cfg.JWTAudience)
		return v
	case "oidc":
		if cfg.OIDCIssuer == "" || cfg.OIDCClientID == "" {
			fmt.Fprintf(os.Stderr, "oidc-issuer and oidc-client-id are required when auth-mode=oidc\n")
			os.Exit(1)
		}
		v, err := auth.NewOIDCVerifier(context.Background(), auth.OIDCConfig{
			Issuer:     cfg.OIDCIssuer,
			ClientID:   cfg.OIDCClientID,
			EmailClaim: cfg.OIDCEmailClaim,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create OIDC verifier: %v\n", err)
			os.Exit(1)
		}
		slog.Info("auth mode: oidc", "issuer", cfg.OIDCIssuer, "client_id", cfg.OIDCClientID)
		return v
	case "introspect":
		if cfg.AuthUserInfoURL == "" {
			fmt.Fprintf(os.Stderr, "auth-userinfo-url is required when auth-mode=introspect\n")
			os.Exit(1)
		}
		v, err := auth.NewIntrospectVerifier(auth.IntrospectConfig{
			UserInfoURL: cfg.AuthUserInfoURL,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create introspect verifier: %v\n", err)
			os.Exit(1)
		}
		slog.Info("auth mode: introspect", "userinfo_url", cfg.AuthUserInfoURL)
		return v
	default:
		fmt.Fprintf(os.Stderr, "auth-mode must be 'introspect', 'jwt', or 'oidc', got %q\n", cfg.AuthMode)
		os.Exit(1)
		return nil
	}
}

// initTracer sets up an OTLP gRPC trace exporter and returns the TracerProvider.
func initTracer(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("locomotion"),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}
