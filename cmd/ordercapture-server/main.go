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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/ordercapture/internal/config"
	"github.com/ehr/ordercapture/internal/domain/catalog"
	"github.com/ehr/ordercapture/internal/domain/diagnostics"
	"github.com/ehr/ordercapture/internal/domain/documents"
	"github.com/ehr/ordercapture/internal/domain/orderview"
	"github.com/ehr/ordercapture/internal/platform/auth"
	"github.com/ehr/ordercapture/internal/platform/db"
	"github.com/ehr/ordercapture/internal/platform/events"
	"github.com/ehr/ordercapture/internal/platform/middleware"
	"github.com/ehr/ordercapture/migrations"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ordercapture-server",
		Short:        "Clinical order resolution and result capture API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())
	return rootCmd
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			schema, err := db.EnsureTenantSchema(ctx, pool, tenant)
			if err != nil {
				return err
			}
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.\n", count, schema)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status of a tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			schema, err := db.EnsureTenantSchema(ctx, pool, tenant)
			if err != nil {
				return err
			}
			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage catalog definitions",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert catalog definitions from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			tenant, _ := cmd.Flags().GetString("tenant")
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			defs, err := catalog.LoadDefinitionsYAML(f)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			ctx, release, err := db.AcquireTenant(cmd.Context(), pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			svc := catalog.NewService(catalog.NewRepoPG(pool), logger)
			var sum catalog.ImportSummary
			err = db.NewTransactor(pool).WithTx(ctx, func(ctx context.Context) error {
				var err error
				sum, err = svc.Import(ctx, defs)
				return err
			})
			if err != nil {
				return fmt.Errorf("catalog import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d definition(s): %d created, %d updated.\n",
				len(defs), sum.Created, sum.Updated)
			return nil
		},
	}
	importCmd.Flags().String("file", "", "YAML file with catalog definitions")
	importCmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(importCmd)

	return cmd
}

// bodyLimit leaves room for multipart framing around the largest attachment.
func bodyLimit(maxAttachmentBytes int64) string {
	return fmt.Sprintf("%dK", (maxAttachmentBytes+1<<20)/1024)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RateLimitRPS
	if cfg.RateLimitBurst > 0 {
		rl.Burst = cfg.RateLimitBurst
	}
	return rl
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if !cfg.EventsEnabled() {
		return events.NopPublisher{}
	}
	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := connect(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	pub := newPublisher(cfg, logger)
	defer pub.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxAttachmentBytes)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Leeway:     30 * time.Second,
	}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}
	limiter := middleware.RateLimit(rateLimitConfig(cfg))
	tenantMW := db.TenantMiddleware(pool, cfg.DefaultTenant)

	apiV1 := e.Group("/api/v1", limiter, authMW, tenantMW)
	fhirGroup := e.Group("/fhir", limiter, authMW, tenantMW)

	// Repositories
	orderRepo := diagnostics.NewOrderRepoPG(pool)
	resultRepo := diagnostics.NewResultRepoPG(pool)
	attachmentRepo := documents.NewAttachmentRepoPG(pool)
	definitionRepo := catalog.NewRepoPG(pool)

	// Services
	catalogSvc := catalog.NewService(definitionRepo, logger)
	dxSvc := diagnostics.NewService(orderRepo, resultRepo, catalogSvc, db.NewTransactor(pool), pub, logger)
	docSvc := documents.NewService(dxSvc, attachmentRepo, pub, logger, cfg.MaxAttachmentBytes)
	viewSvc := orderview.NewService(dxSvc, docSvc, catalogSvc, logger).WithForker(db.ForkTenant(pool, cfg.DBAcquireTimeout))

	// Handlers
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	diagnostics.NewHandler(dxSvc).RegisterRoutes(apiV1, fhirGroup)
	documents.NewHandler(docSvc).RegisterRoutes(apiV1, fhirGroup)
	orderview.NewHandler(viewSvc).RegisterRoutes(apiV1, fhirGroup)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
