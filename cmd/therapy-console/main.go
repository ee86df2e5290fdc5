package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/therapy/internal/config"
	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
	"github.com/clinic/therapy/internal/platform/apiclient"
	"github.com/clinic/therapy/internal/platform/auth"
	"github.com/clinic/therapy/internal/platform/middleware"
	"github.com/clinic/therapy/internal/platform/sandbox"
	"github.com/clinic/therapy/internal/platform/scheduler"
	"github.com/clinic/therapy/pkg/money"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "therapy-console",
		Short: "Therapy package console for the clinic front desk",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sandboxCmd())
	rootCmd.AddCommand(packagesCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		logger = logger.Level(lvl)
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newBackendClient(cfg *config.Config, logger zerolog.Logger) *apiclient.Client {
	return apiclient.New(cfg.BackendURL,
		apiclient.WithToken(cfg.BackendToken),
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(logger),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the therapy package API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)

	client := newBackendClient(cfg, logger)
	packageRepo := therapy.NewPackageRepoHTTP(client)
	financialSvc := financial.NewService(financial.NewRepoHTTP(client), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	authCfg := auth.Config{SigningKey: cfg.SigningKey(), DevToken: cfg.DevAuthToken()}
	if authCfg.DevToken != "" {
		logger.Warn().Msg("AUTH_MODE=dev: requests without a token act as admin")
	}
	apiV1 := e.Group("/api/v1", auth.Middleware(authCfg), middleware.RequestTimeout(cfg.RequestTimeout))

	therapy.NewHandler(packageRepo, logger).RegisterRoutes(apiV1)
	financial.NewHandler(financialSvc).RegisterRoutes(apiV1)

	// Daily closing export
	var sched *scheduler.Scheduler
	if cfg.ReportSchedule != "" {
		sched = scheduler.New(logger)
		err := sched.Daily(cfg.ReportSchedule, "daily-closing", func(ctx context.Context) error {
			path, err := financialSvc.SaveClosing(ctx, time.Now(), cfg.ReportDir)
			if err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg("daily closing exported")
			return nil
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule daily closing")
		}
		sched.Start()
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.BackendURL).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if sched != nil {
		sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run an in-memory clinic backend for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			token, _ := cmd.Flags().GetString("token")
			seed, _ := cmd.Flags().GetBool("seed")

			logger := newLogger("development", "debug")
			store := sandbox.NewStore()
			if seed {
				result, err := sandbox.NewSeeder(sandbox.DefaultSeedConfig()).Generate(store)
				if err != nil {
					return fmt.Errorf("seed sandbox: %w", err)
				}
				logger.Info().
					Int("packages", result.Packages).
					Int("records", result.Records).
					Strs("patients", result.Patients).
					Msg("sandbox seeded")
			}

			e := sandbox.NewEcho(store, sandbox.WithToken(token), sandbox.WithLogger(logger))
			e.HideBanner = true
			e.HidePort = true

			go func() {
				addr := ":" + port
				logger.Info().Str("addr", addr).Msg("starting sandbox backend")
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("sandbox error")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(ctx)
		},
	}
	cmd.Flags().String("port", "8090", "Listen port")
	cmd.Flags().String("token", "", "Bearer token required on backend routes (empty disables the check)")
	cmd.Flags().Bool("seed", true, "Generate synthetic packages and financial records on start")
	return cmd
}

func packagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Inspect a patient's therapy packages",
	}

	fetch := func(cmd *cobra.Command) ([]*therapy.TherapyPackage, error) {
		patient, _ := cmd.Flags().GetString("patient")
		status, _ := cmd.Flags().GetString("status")
		if patient == "" {
			return nil, fmt.Errorf("--patient is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		logger := newLogger(cfg.Env, "warn")
		sync := therapy.NewSynchronizer(therapy.NewPackageRepoHTTP(newBackendClient(cfg, logger)), logger)
		pkgs, err := sync.FetchPackages(cmd.Context(), patient, therapy.ListFilters{
			Status: therapy.PackageStatus(status),
			Limit:  100,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", therapy.UserMessage(err), err)
		}
		return pkgs, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List packages with their balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := fetch(cmd)
			if err != nil {
				return err
			}
			return writePackages(cmd.OutOrStdout(), pkgs)
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the patient's aggregated balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := fetch(cmd)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), therapy.Summarize(pkgs))
		},
	}

	for _, c := range []*cobra.Command{listCmd, balanceCmd} {
		c.Flags().String("patient", "", "Patient identifier")
		c.Flags().String("status", "", "Filter by package status (active, pending, completed)")
		cmd.AddCommand(c)
	}
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}

	closingCmd := &cobra.Command{
		Use:   "closing",
		Short: "Export the daily closing spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			out, _ := cmd.Flags().GetString("out")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			day, err := financial.ParseDay(date, time.Now())
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.ReportDir
			}
			if out == "" {
				out = "."
			}

			logger := newLogger(cfg.Env, "warn")
			svc := financial.NewService(financial.NewRepoHTTP(newBackendClient(cfg, logger)), logger)
			closing, err := svc.Closing(cmd.Context(), day)
			if err != nil {
				return err
			}
			if err := writeClosing(cmd.OutOrStdout(), closing); err != nil {
				return err
			}
			path, err := svc.SaveClosing(cmd.Context(), day, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nplanilha salva em %s\n", path)
			return nil
		},
	}
	closingCmd.Flags().String("date", "", "Day to close (YYYY-MM-DD, default today)")
	closingCmd.Flags().String("out", "", "Output directory (default REPORT_DIR or current directory)")

	cmd.AddCommand(closingCmd)
	return cmd
}

func writePackages(w io.Writer, pkgs []*therapy.TherapyPackage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIPO\tSTATUS\tSESSÕES\tVALOR\tPAGO\tSALDO\tPROGRESSO")
	for _, p := range pkgs {
		b := therapy.ComputeBalance(p)
		saldo := money.Format(b.Balance)
		switch {
		case b.HasCredit:
			saldo = "crédito " + money.Format(b.Balance.Neg())
		case b.HasOverage:
			saldo += fmt.Sprintf(" (+%d extra)", -b.Remaining)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t%s%%\n",
			p.ID, p.SessionType.Label(), p.Status, p.SessionsDone, p.TotalSessions,
			money.Format(p.TotalValue), money.Format(p.TotalPaid), saldo,
			therapy.Progress(p).StringFixed(0))
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, s therapy.PackagesSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Pacotes\t%d (ativos %d, pendentes %d, concluídos %d)\n", s.Packages, s.Active, s.Pending, s.Completed)
	fmt.Fprintf(tw, "Contratado\t%s\n", money.Format(s.ContractedValue))
	fmt.Fprintf(tw, "Pago\t%s\n", money.Format(s.PaidValue))
	fmt.Fprintf(tw, "Em aberto\t%s\n", money.Format(s.Outstanding))
	fmt.Fprintf(tw, "Crédito\t%s\n", money.Format(s.Credit))
	fmt.Fprintf(tw, "Sessões\t%d realizadas, %d restantes, %d extras\n", s.SessionsDone, s.SessionsRemaining, s.ExtraSessions)
	return tw.Flush()
}

func writeClosing(w io.Writer, c *financial.DailyClosing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Fechamento\t%s\n", c.Date)
	fmt.Fprintf(tw, "Lançamentos\t%d (%d cancelados)\n", c.Count, c.Canceled)
	fmt.Fprintf(tw, "Total recebido\t%s\n", money.Format(c.Total))
	fmt.Fprintf(tw, "Pendente\t%s\n", money.Format(c.Pending))
	for _, m := range c.ByMethod {
		fmt.Fprintf(tw, "  %s\t%s (%d)\n", m.Method, money.Format(m.Total), m.Count)
	}
	return tw.Flush()
}
