package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/ipldash/internal/auth"
	"github.com/saltyorg/ipldash/internal/config"
	"github.com/saltyorg/ipldash/internal/database"
	"github.com/saltyorg/ipldash/internal/logging"
	"github.com/saltyorg/ipldash/internal/maintenance"
	"github.com/saltyorg/ipldash/internal/metrics"
	"github.com/saltyorg/ipldash/internal/stats"
	"github.com/saltyorg/ipldash/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultDSN = "./ipldash.db"

// CLI flags
var (
	port        int
	bind        string
	allowSubnet string
	driverName  string
	dsn         string
	verbosity   int
	devMode     bool
	seedDemo    bool

	// Timeout flags (advanced)
	requestTimeout  time.Duration
	queryTimeout    time.Duration
	shutdownTimeout time.Duration

	adminUsername string
	adminPassword string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ipldash",
		Short: "IPL Stats Dashboard",
		Long:  `ipldash serves reports and charts over Indian Premier League match statistics (2008-2022) to registered users and administrators.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			logging.Console(verbosity)
			return nil
		},
		RunE: run,
	}

	// Flags shared by every command
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "Database driver: sqlite or postgres (or set DB_DRIVER env var)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", defaultDSN, "SQLite path or PostgreSQL connection string (or set DATABASE_URL env var)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	// Server flags
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (required, or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")
	rootCmd.Flags().BoolVar(&devMode, "dev", false, "Development mode: cookies without the Secure flag")
	rootCmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Load the demo dataset when the statistics tables are empty")

	// Advanced timeout flags
	rootCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 60*time.Second, "Timeout for a whole HTTP request")
	rootCmd.Flags().DurationVar(&queryTimeout, "query-timeout", 30*time.Second, "Timeout for a single report query (overrides stats.query_timeout_secs)")
	rootCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Grace period for in-flight requests on shutdown")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ipldash %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			log.Info().Msg("Migrations applied")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset into empty statistics tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SeedDemo(); err != nil {
				if errors.Is(err, database.ErrAlreadySeeded) {
					log.Warn().Msg("Statistics tables already hold data; nothing seeded")
					return nil
				}
				return err
			}
			return nil
		},
	})

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	createAdminCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator or reset its password",
		RunE:  createAdmin,
	}
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Administrator username (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password (or set IPLDASH_ADMIN_PASSWORD env var)")
	_ = createAdminCmd.MarkFlagRequired("username")
	adminCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(adminCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase connects with the driver and DSN from flags or environment and
// brings the schema and default settings up to date.
func openDatabase(ctx context.Context) (*database.DB, error) {
	if driverName == "" {
		driverName = os.Getenv("DB_DRIVER")
	}
	if dsn == defaultDSN {
		dsn = config.Env("DATABASE_URL", defaultDSN)
	}

	driver, err := database.ParseDriver(driverName)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Open(ctx, database.Options{Driver: driver, DSN: dsn})
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	if err := db.InitializeDefaults(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize default settings: %w", err)
	}
	return db, nil
}

func createAdmin(cmd *cobra.Command, args []string) error {
	password := adminPassword
	if password == "" {
		password = os.Getenv("IPLDASH_ADMIN_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("--password flag or IPLDASH_ADMIN_PASSWORD environment variable is required")
	}

	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := auth.NewAuthService(db, nil).CreateAdmin(adminUsername, password); err != nil {
		return err
	}
	fmt.Printf("Administrator %q saved\n", adminUsername)
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	// Check for PORT env var if flag not set
	if port == 0 {
		port = config.EnvInt("PORT", 0)
	}

	// Validate port
	if port == 0 {
		return fmt.Errorf("--port flag or PORT environment variable is required")
	}

	// Validate bind address if provided
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	// Validate and parse allow-subnet if provided
	var allowedNet *net.IPNet
	if allowSubnet != "" {
		_, parsedNet, err := net.ParseCIDR(allowSubnet)
		if err != nil {
			return fmt.Errorf("invalid allow-subnet CIDR: %s", allowSubnet)
		}
		allowedNet = parsedNet
	}

	// Warn if binding to all interfaces without an allow list
	if (bind == "" || bind == "0.0.0.0" || bind == "::") && allowSubnet == "" {
		log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
	}

	db, err := openDatabase(cmd.Context())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Log to file as well, with rotation limits from settings
	settings := config.NewLoader(db)
	logging.Apply(verbosity, settings, logging.FilePathFor(db.Path()))

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("allow_subnet", allowSubnet).
		Str("driver", string(db.Driver())).
		Msg("Starting ipldash")

	if seedDemo {
		if err := db.SeedDemo(); err != nil && !errors.Is(err, database.ErrAlreadySeeded) {
			log.Fatal().Err(err).Msg("Failed to load demo dataset")
		}
	}

	migrated, failed, err := auth.MigratePlaintextPasswords(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate stored passwords")
	}
	if migrated > 0 || failed > 0 {
		log.Info().Int("migrated", migrated).Int("failed", failed).Msg("Hashed plaintext passwords")
	}

	// Report queries may not outlive the request that runs them
	if !cmd.Flags().Changed("query-timeout") {
		queryTimeout = settings.DurationSeconds("stats.query_timeout_secs", int(queryTimeout/time.Second))
	}
	config.SetGlobalTimeouts(&config.TimeoutConfig{
		Request:  requestTimeout,
		Query:    min(queryTimeout, requestTimeout),
		Shutdown: shutdownTimeout,
	})

	registry := metrics.NewRegistry()
	metricsSvc := metrics.NewService(registry)
	metricsSvc.SetBuildInfo(version, string(db.Driver()))

	statsService := stats.NewService(db, stats.Options{
		CacheTTL:        settings.DurationSeconds("stats.cache_ttl_seconds", 600),
		CacheMaxEntries: settings.Int("stats.cache_max_entries", 256),
		QueryTimeout:    config.GetTimeouts().Query,
		Observer:        metricsSvc,
	})
	authService := auth.NewAuthService(db, metricsSvc)

	maintenanceMgr, err := maintenance.NewManager(authService, statsService, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance jobs")
	}
	maintenanceMgr.Start()
	defer maintenanceMgr.Stop()

	server, err := web.NewServer(db, authService, statsService, web.Options{
		Port:       port,
		Bind:       bind,
		AllowedNet: allowedNet,
		IsDev:      devMode,
		Gatherer:   registry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	server.SetMaintenanceManager(maintenanceMgr)
	server.SetVersionInfo(version, commit, date)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("ipldash stopped")
	return nil
}
