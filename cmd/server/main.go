package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"clinictrack/internal/audit"
	audithandler "clinictrack/internal/audit/handler"
	jwttoken "clinictrack/internal/jwt_token"
	licensehandler "clinictrack/internal/license/handler"
	"clinictrack/internal/license/keycodec"
	licensemetrics "clinictrack/internal/license/metrics"
	licensemodels "clinictrack/internal/license/models"
	licenseservice "clinictrack/internal/license/service"
	"clinictrack/internal/platform/config"
	"clinictrack/internal/platform/health"
	"clinictrack/internal/platform/logger"
	"clinictrack/internal/platform/tracer"
	"clinictrack/internal/seeder"
	tenanthandler "clinictrack/internal/tenant/handler"
	tenantmetrics "clinictrack/internal/tenant/metrics"
	tenantservice "clinictrack/internal/tenant/service"
	therapyhandler "clinictrack/internal/therapy/handler"
	therapyservice "clinictrack/internal/therapy/service"
	httptransport "clinictrack/internal/transport/http"
	"clinictrack/pkg/platform/middleware/request"
	"clinictrack/pkg/secrets"
)

const (
	tokenIssuer     = "clinictrack"
	auditBufferSize = 256
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "clinictrack:", err)
		os.Exit(1)
	}
}

// run wires the services over the configured backend and serves until
// SIGINT or SIGTERM.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	codec, err := keycodec.New(cfg.LicenseSecret)
	if err != nil {
		return fmt.Errorf("license codec: %w", err)
	}
	trc := tracer.NewOTel()
	hasher := secrets.NewHasher(cfg.BcryptCost)

	events := audit.NewPublisher(st.audit,
		audit.WithAsyncBuffer(auditBufferSize),
		audit.WithPublisherLogger(log),
	)
	defer events.Close()

	licenses := licenseservice.New(st.licenses, codec,
		licenseservice.WithLogger(log),
		licenseservice.WithAudit(events),
		licenseservice.WithMetrics(licensemetrics.New()),
		licenseservice.WithTracer(trc),
		licenseservice.WithTx(st.tx),
	)
	defer licenses.Wait()

	tenants := tenantservice.New(st.tenants, st.users, licenses,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tenantmetrics.New()),
		tenantservice.WithTracer(trc),
		tenantservice.WithAudit(events),
		tenantservice.WithTx(st.tx),
		tenantservice.WithHasher(hasher),
	)
	therapy := therapyservice.New(st.therapy, st.users,
		therapyservice.WithLogger(log),
		therapyservice.WithTracer(trc),
	)

	if err := seedAdmin(ctx, cfg, st, hasher, log); err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, cfg.TokenTTL)
	healthHandler := health.New(cfg.Environment, st.backend)
	if st.db != nil {
		healthHandler.RegisterCheck("database", st.db.Health)
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is empty; license administration is disabled")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:             log,
		Tokens:             jwttoken.NewJWTServiceAdapter(jwt),
		Metrics:            request.NewMetrics(),
		MetricsHandler:     promhttp.Handler(),
		Licenses:           licensehandler.New(licenses, log),
		Tenants:            tenanthandler.New(tenants, jwt, log),
		Therapy:            therapyhandler.New(therapy, log),
		Health:             healthHandler,
		Audit:              audithandler.New(events, log),
		AdminToken:         cfg.AdminToken,
		TrustedProxies:     cfg.Proxies(),
		RequestTimeout:     cfg.RequestTimeout,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitPerMinute: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server",
			"addr", cfg.Addr,
			"backend", st.backend,
			"environment", cfg.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func seedAdmin(ctx context.Context, cfg *config.Server, st *stores, hasher *secrets.Hasher, log *slog.Logger) error {
	admin := seeder.Admin{
		User:     cfg.AdminUser,
		Password: cfg.AdminPass,
		MaxUsers: cfg.AdminMaxUsers,
	}
	if !admin.Enabled() {
		return nil
	}
	kind, err := licensemodels.ParseKind(cfg.AdminLicenseType)
	if err != nil {
		return fmt.Errorf("ADMIN_LICENSE_TYPE: %w", err)
	}
	admin.LicenseKind = kind

	s := seeder.New(st.tenants, st.licenses, hasher, st.tx, log)
	if err := s.SeedAdmin(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
