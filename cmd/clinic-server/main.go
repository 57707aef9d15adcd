package main

import (
	"context"
	"fmt"
	"io/fs"
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

	"github.com/dentaldesk/clinic/internal/config"
	"github.com/dentaldesk/clinic/internal/domain/charting"
	"github.com/dentaldesk/clinic/internal/domain/identity"
	"github.com/dentaldesk/clinic/internal/domain/scheduling"
	"github.com/dentaldesk/clinic/internal/platform/auth"
	"github.com/dentaldesk/clinic/internal/platform/cache"
	"github.com/dentaldesk/clinic/internal/platform/db"
	"github.com/dentaldesk/clinic/internal/platform/events"
	"github.com/dentaldesk/clinic/internal/platform/middleware"
	"github.com/dentaldesk/clinic/internal/platform/reporting"
	"github.com/dentaldesk/clinic/internal/platform/validation"
	"github.com/dentaldesk/clinic/internal/platform/websocket"
	"github.com/dentaldesk/clinic/migrations"
)

const (
	version        = "0.1.0"
	requestTimeout = 15 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// migrationFiles returns the embedded migrations, or dir when it is set.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// connect loads the config and opens a pool for the one-shot commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to a clinic branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if branch == "" {
				branch = cfg.DefaultTenant
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			schema := db.SchemaName(branch)

			migrator := db.NewMigrator(pool, migrationFiles(dir))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("branch", "", "Clinic branch (defaults to DEFAULT_TENANT)")
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status for a clinic branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if branch == "" {
				branch = cfg.DefaultTenant
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			schema := db.SchemaName(branch)

			migrator := db.NewMigrator(pool, migrationFiles(dir))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.Modified {
						status = "modified"
					}
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("branch", "", "Clinic branch (defaults to DEFAULT_TENANT)")
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinic branches",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic branch schema and migrate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating branch schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, migrationFiles(cfg.MigrationsDir)); err != nil {
				return err
			}
			fmt.Println("Branch created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Branch identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage staff tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a staff token with JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			branch, _ := cmd.Flags().GetString("branch")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if branch == "" {
				branch = cfg.DefaultTenant
			}
			if err := checkRoles(roles); err != nil {
				return err
			}

			token, err := auth.IssueToken([]byte(cfg.JWTSigningKey), cfg.AuthIssuer, subject, branch, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "Staff member identifier")
	issueCmd.Flags().StringSlice("roles", []string{auth.RoleReceptionist}, "Comma-separated staff roles")
	issueCmd.Flags().String("branch", "", "Clinic branch (defaults to DEFAULT_TENANT)")
	issueCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = issueCmd.MarkFlagRequired("subject")

	cmd.AddCommand(issueCmd)
	return cmd
}

var knownRoles = map[string]bool{
	auth.RoleAdmin:        true,
	auth.RoleDentist:      true,
	auth.RoleReceptionist: true,
	auth.RoleAssistant:    true,
}

func checkRoles(roles []string) error {
	if len(roles) == 0 {
		return fmt.Errorf("at least one role is required")
	}
	for _, r := range roles {
		if !knownRoles[r] {
			return fmt.Errorf("unknown role %q", r)
		}
	}
	return nil
}

// authMiddleware verifies staff tokens. In development a request without a
// token runs as admin on the default branch.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	var verify echo.MiddlewareFunc
	if cfg.JWTSigningKey != "" {
		verify = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.JWTSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(cfg.DefaultTenant, verify)
	}
	return verify
}

// newServer builds the echo instance with every route registered.
func newServer(cfg *config.Config, loc *time.Location, pool *pgxpool.Pool, logger zerolog.Logger, c cache.Cache, pub events.Publisher) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, db.BranchHeader},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.PoolHealthHandler(pool))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(requestTimeout))
	apiV1.Use(authMiddleware(cfg))
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	tx := db.NewTransactor(pool)

	// Waiting-room boards get every event the scheduler raises.
	hub := websocket.NewHub(logger)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Identity domain
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewDentistRepo(pool))
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Scheduling domain
	schedules := scheduling.NewCachedScheduleRepo(scheduling.NewScheduleRepoPG(pool), c, cfg.ScheduleCacheTTL, logger)
	schedulingSvc := scheduling.NewService(schedules, scheduling.NewAppointmentRepoPG(pool), scheduling.NewQueueRepoPG(pool), tx)
	schedulingSvc.SetPatientCreator(identitySvc)
	schedulingSvc.SetPublisher(events.Fanout{pub, hub})
	schedulingSvc.SetLogger(logger)
	schedulingSvc.SetLimit(cfg.DailyAppointmentLimit, cfg.EnforceDailyLimit)
	schedulingSvc.SetClock(loc, nil)
	identitySvc.OnDentistRemoved(schedulingSvc.ForgetDentist)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Charting domain
	chartingSvc := charting.NewService(
		charting.NewToothConditionRepoPG(pool),
		charting.NewTimelineRepoPG(pool),
		charting.NewMedicationRepoPG(pool),
		charting.NewAnnualRecordRepoPG(pool),
	)
	charting.NewHandler(chartingSvc).RegisterRoutes(apiV1)

	// Daily reports
	reportSvc := reporting.NewService(reporting.NewPGSource(pool), cfg.DailyAppointmentLimit)
	reportSvc.SetClock(loc, nil)
	reportSvc.SetLogger(logger)
	reporting.NewHandler(reportSvc).RegisterRoutes(apiV1)

	return e
}

// scheduleCache connects to Redis when REDIS_URL is set.
func scheduleCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.NewNoop(), func() {}
	}
	rc, err := cache.NewRedis(cfg.RedisURL, "clinic")
	if err != nil {
		logger.Warn().Err(err).Msg("redis disabled")
		return cache.NewNoop(), func() {}
	}
	if err := rc.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, schedule reads will go to the database")
	}
	return rc, func() { rc.Close() }
}

// eventPublisher connects to AMQP when AMQP_URL is set.
func eventPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, func() {}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp disabled, status events will not be published")
		return events.NoopPublisher{}, func() {}
	}
	return p, func() { p.Close() }
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.IsDev() {
		if err := db.CreateTenantSchema(ctx, pool, cfg.DefaultTenant, migrationFiles(cfg.MigrationsDir)); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare default branch")
		}
	}

	c, closeCache := scheduleCache(ctx, cfg, logger)
	defer closeCache()
	pub, closePub := eventPublisher(cfg, logger)
	defer closePub()

	e := newServer(cfg, loc, pool, logger, c, pub)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).
			Int("daily_limit", cfg.DailyAppointmentLimit).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

