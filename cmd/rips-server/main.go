package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rueisp/odontologia/internal/config"
	"github.com/rueisp/odontologia/internal/domain/rips"
	"github.com/rueisp/odontologia/internal/platform/auth"
	"github.com/rueisp/odontologia/internal/platform/blobstore"
	"github.com/rueisp/odontologia/internal/platform/db"
	"github.com/rueisp/odontologia/internal/platform/events"
	"github.com/rueisp/odontologia/internal/platform/middleware"
	"github.com/rueisp/odontologia/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rips-server",
		Short:        "RIPS export service for the dental practice",
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(tenantCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Generate a RIPS bundle and write it to disk",
		Example: "  rips-server export --start 01/01/2025 --end 31/01/2025 --out ./out --preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			out, _ := cmd.Flags().GetString("out")
			tenant, _ := cmd.Flags().GetString("tenant")
			preview, _ := cmd.Flags().GetBool("preview")
			return runExport(cmd.Context(), cmd.OutOrStdout(), exportOptions{
				Start:   start,
				End:     end,
				OutDir:  out,
				Tenant:  tenant,
				Preview: preview,
			})
		},
	}
	cmd.Flags().String("start", "", "First issue date, DD/MM/YYYY (required)")
	cmd.Flags().String("end", "", "Last issue date, DD/MM/YYYY (required)")
	cmd.Flags().String("out", ".", "Directory the archive is written to")
	cmd.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
	cmd.Flags().Bool("preview", false, "Also write an .xlsx workbook with one sheet per file")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaFor(orDefault(tenant, cfg.DefaultTenant))
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaFor(orDefault(tenant, cfg.DefaultTenant))
			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")
		c.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
		cmd.AddCommand(c)
	}
	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.CreateTenantSchema(cmd.Context(), pool, name, migrations.FS); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s created in schema %s\n", name, db.SchemaFor(name))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	cmd.AddCommand(createCmd)
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

// migrationSource returns the embedded migrations unless dir is set.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func providerFrom(cfg *config.Config) rips.Provider {
	return rips.Provider{
		Code:        cfg.ProviderCode,
		Name:        cfg.ProviderName,
		IDType:      cfg.ProviderIDType,
		ID:          cfg.ProviderID,
		InsurerName: cfg.InsurerName,
		Contract:    cfg.Contract,
		BenefitPlan: cfg.BenefitPlan,
	}
}

// archiveStore builds the retention backend named by ARCHIVE_STORE. It
// returns nil when retention is disabled.
func archiveStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.ArchiveStore {
	case "memory":
		return blobstore.NewInMemoryStore(), nil
	case "minio":
		return blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, nil
	}
}

// newService assembles the export service with optional retention and
// event publishing. The returned cleanup closes the broker connection.
func newService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*rips.Service, blobstore.Store, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, nil, err
	}
	svc := rips.NewService(rips.NewRepoPG(pool), providerFrom(cfg), loc, logger)

	store, err := archiveStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("archive store: %w", err)
	}
	if store != nil {
		svc.SetArchiveStore(store)
		logger.Info().Str("backend", cfg.ArchiveStore).Msg("archive retention enabled")
	}

	cleanup := func() {}
	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("event publisher: %w", err)
		}
		svc.SetPublisher(pub, cfg.DefaultTenant)
		cleanup = func() {
			if err := pub.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing event publisher")
			}
		}
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("export events enabled")
	}
	return svc, store, cleanup, nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func runServer() error {
	cfg, err := loadConfig()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svc, store, cleanup, err := newService(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build export service")
	}
	defer cleanup()

	e := newEcho(cfg, pool, logger, svc, store)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, svc rips.Generator, store blobstore.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
		ExposeHeaders: []string{echo.HeaderContentDisposition, middleware.RequestIDHeader},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(cfg.DefaultTenant))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.PublicSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	api := e.Group("/api/v1")
	if pool != nil {
		api.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	}
	api.Use(middleware.Audit(logger))
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	rips.NewHandler(svc, logger).RegisterRoutes(api)
	if store != nil {
		archives := api.Group("/rips", auth.RequireRole("admin", "billing"))
		blobstore.NewHandler(store, rips.ArchivePrefix).RegisterRoutes(archives)
	}
	return e
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

type exportOptions struct {
	Start   string
	End     string
	OutDir  string
	Tenant  string
	Preview bool
}

func runExport(ctx context.Context, out io.Writer, opts exportOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger := newLogger(cfg)

	svc, _, cleanup, err := newService(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	tctx, release, err := db.AcquireTenant(ctx, pool, orDefault(opts.Tenant, cfg.DefaultTenant))
	if err != nil {
		return err
	}
	defer release()

	snap, tx, err := db.WithTx(tctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(tctx)

	archive, err := svc.Generate(snap, opts.Start, opts.End)
	if rips.IsEmpty(err) {
		fmt.Fprintln(out, "No invoices to export in the selected range.")
		return nil
	}
	if err != nil {
		return err
	}

	paths, err := writeArchive(opts.OutDir, archive, opts.Preview)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	if len(archive.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped invoices without patient: %s\n", strings.Join(archive.Skipped, ", "))
	}
	return nil
}

// writeArchive writes the zip, and the xlsx preview when asked, into dir
// and returns the written paths.
func writeArchive(dir string, a *rips.Archive, preview bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	zipPath := filepath.Join(dir, a.Name)
	if err := os.WriteFile(zipPath, a.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", zipPath, err)
	}
	paths := []string{zipPath}

	if preview {
		xlsxPath := filepath.Join(dir, strings.TrimSuffix(a.Name, ".zip")+".xlsx")
		f, err := os.Create(xlsxPath)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", xlsxPath, err)
		}
		if err := rips.WritePreview(f, a); err != nil {
			f.Close()
			return paths, fmt.Errorf("write preview: %w", err)
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("close %s: %w", xlsxPath, err)
		}
		paths = append(paths, xlsxPath)
	}
	return paths, nil
}
