package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/griff-web/medai-client/internal/auth"
	"github.com/griff-web/medai-client/internal/capture"
	"github.com/griff-web/medai-client/internal/config"
	"github.com/griff-web/medai-client/internal/diagnostics"
	"github.com/griff-web/medai-client/internal/envelope"
	"github.com/griff-web/medai-client/internal/history"
	"github.com/griff-web/medai-client/internal/metrics"
	"github.com/griff-web/medai-client/internal/prefs"
	"github.com/griff-web/medai-client/internal/present"
	"github.com/griff-web/medai-client/internal/services"
	"github.com/griff-web/medai-client/internal/utils"
)

const usageText = `medai is a client for the MedAI diagnostics service.

Usage:
  medai login    -email <addr> -password <pw> [-remember]
  medai register -name <name> -email <addr> -password <pw> [-role <role>] [-remember]
  medai logout
  medai whoami
  medai analyze  -file <image> [-mode xray|ct|mri|ultrasound]
  medai history  [-n <count>]

Every command accepts -config <path> to override the default config file.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "login":
		err = runLogin(ctx, args[1:])
	case "register":
		err = runRegister(ctx, args[1:])
	case "logout":
		err = runLogout(args[1:])
	case "whoami":
		err = runWhoami(ctx, args[1:])
	case "analyze":
		err = runAnalyze(ctx, args[1:])
	case "history":
		err = runHistory(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "medai: unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 1
		}
		fmt.Fprintf(os.Stderr, "medai: %s\n", present.Notification(err))
		return 1
	}
	return 0
}

// app is the explicit application context passed to command handlers. There
// are no package-level singletons; everything hangs off this struct.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	prefs  prefs.Prefs
	store  *auth.Store
	env    *envelope.Envelope
	auth   *auth.Client
	diag   *diagnostics.Client
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	store := auth.NewStore(cfg.Storage.SessionPath)
	env := envelope.New(
		envelope.WithTimeout(cfg.API.Timeout),
		envelope.WithRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxJitter),
		envelope.WithLogger(logger),
		envelope.WithAuthRejectHook(store.Clear),
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		prefs:  prefs.Load(""),
		store:  store,
		env:    env,
		auth:   auth.NewClient(cfg.API.BaseURL, cfg.API.LoginPath, cfg.API.RegisterPath, cfg.API.MePath, env, store),
		diag:   diagnostics.NewClient(cfg.API.BaseURL, cfg.API.ProcessPath, cfg.API.UploadField, env, store),
	}, nil
}

func runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		return fmt.Errorf("login requires -email and -password")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	user, err := a.auth.Login(ctx, *email, *password, *remember)
	if err != nil {
		return err
	}

	a.prefs.Remember = *remember
	if err := prefs.Save("", a.prefs); err != nil {
		a.logger.Warn("saving preferences failed", slog.Any("error", err))
	}

	fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Role)
	return nil
}

func runRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", "practitioner", "account role")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	_ = fs.Parse(args)

	if *name == "" || *email == "" || *password == "" {
		return fmt.Errorf("register requires -name, -email and -password")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	user, err := a.auth.Register(ctx, *name, *email, *password, *role, *remember)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (%s)\n", user.Name, user.Role)
	return nil
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	a.store.Clear()
	fmt.Println("Logged out.")
	return nil
}

func runWhoami(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	user, err := a.auth.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", user.Name, user.Role)
	return nil
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	file := fs.String("file", "", "image file to analyze")
	modeFlag := fs.String("mode", "", "scan modality (xray, ct, mri, ultrasound)")
	_ = fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("analyze requires -file")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	modeValue := *modeFlag
	if modeValue == "" {
		modeValue = a.prefs.DefaultMode
	}
	mode, ok := diagnostics.ParseMode(modeValue)
	if !ok {
		return fmt.Errorf("unknown scan mode %q", modeValue)
	}

	metricsShutdown := a.startMetricsServer()
	defer metricsShutdown()

	payload, err := capture.FromFile(*file, a.cfg.API.MaxUploadBytes)
	if err != nil {
		return err
	}
	a.logger.Debug("captured payload",
		slog.String("file", payload.Filename),
		slog.String("content_type", payload.ContentType),
		slog.Int("width", payload.Width),
		slog.Int("height", payload.Height))

	historyProvider, err := a.historyProvider()
	if err != nil {
		return err
	}
	defer historyProvider.Close()

	svc := services.NewAnalysisService(a.logger, a.diag, historyProvider, a.cfg.Retry.Cooldown)
	report, err := svc.Analyze(ctx, payload, mode)
	if err != nil {
		return err
	}

	fmt.Println(present.RenderReport(report, mode))

	a.prefs.DefaultMode = string(mode)
	if err := prefs.Save("", a.prefs); err != nil {
		a.logger.Warn("saving preferences failed", slog.Any("error", err))
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	limit := fs.Int("n", 10, "number of entries to show")
	_ = fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	historyProvider, err := a.historyProvider()
	if err != nil {
		return err
	}
	defer historyProvider.Close()

	entries, err := historyProvider.Recent(ctx, *limit)
	if err != nil {
		if errors.Is(err, history.ErrEmpty) {
			fmt.Println("No analyses recorded yet.")
			return nil
		}
		return err
	}

	for _, entry := range entries {
		mode, _ := diagnostics.ParseMode(entry.Mode)
		fmt.Printf("%s  %-10s  %-30s  %s\n",
			entry.CreatedAt.Local().Format("2006-01-02 15:04"),
			present.ModeLabel(mode),
			entry.Diagnosis,
			present.ConfidenceMeter(entry.Confidence, 10))
	}
	return nil
}

func (a *app) historyProvider() (history.Provider, error) {
	if a.cfg.Storage.HistoryPath == "" {
		return history.NoopProvider{}, nil
	}
	return history.NewFileProvider(a.cfg.Storage.HistoryPath, a.cfg.Storage.HistoryEntries)
}

// startMetricsServer exposes /metrics while a command runs, when configured.
// The returned func shuts the listener down.
func (a *app) startMetricsServer() func() {
	if a.cfg.Metrics.Address == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         a.cfg.Metrics.Address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server listening", slog.String("address", a.cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server exited", slog.Any("error", err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}
}
