package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"groupguard/internal/bot"
	"groupguard/internal/config"
	"groupguard/internal/database"
	"groupguard/internal/line"
	"groupguard/internal/metrics"
	"groupguard/internal/moderation"
	"groupguard/internal/routing"
	"groupguard/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// userIDPattern matches platform user IDs: "U" followed by 32 hex digits
var userIDPattern = regexp.MustCompile(`^U[0-9a-f]{32}$`)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config file")
	adminsFile := pflag.String("admins-file", "", "file with one super-admin user ID per line")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	if *adminsFile != "" {
		ids, err := loadAdminIDs(*adminsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *adminsFile).Msg("Failed to load admins file")
		}
		log.Info().
			Int("count", len(ids)).
			Str("file", *adminsFile).
			Strs("admin_ids", ids).
			Msg("Loaded super-admins from file")
		cfg.AdminIDs = append(cfg.AdminIDs, ids...)
	}

	log.Info().Msg("Starting groupguard")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(level, format string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
		log.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Tracing enabled")
	}

	store, err := database.Open(ctx, cfg.Store, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer store.Close()

	log.Info().Str("backend", cfg.Store).Str("data_dir", cfg.DataDir).Msg("Database opened")
	logLastSaved(ctx, store)

	blacklist := moderation.NewBlacklistStore(ctx, store)
	warnings := moderation.NewWarningLedger(ctx, store, blacklist, cfg.WarningThreshold)
	admins := moderation.NewAdminRegistry(ctx, store)
	reports := moderation.NewReportLog(ctx, store)

	log.Info().
		Int("blacklisted", blacklist.Count()).
		Int("warned_users", warnings.WarnedUsers()).
		Int("admin_groups", admins.GroupCount()).
		Int("threshold", warnings.Threshold()).
		Msg("Moderation state loaded")

	client, err := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.ChannelAccessToken, nil)
	if err != nil {
		return fmt.Errorf("create platform client: %w", err)
	}
	dispatcher := bot.New(bot.Stores{
		Blacklist: blacklist,
		Warnings:  warnings,
		Admins:    admins,
		Reports:   reports,
	}, client, bot.Config{
		Prefix:      cfg.CommandPrefix,
		SuperAdmins: cfg.AdminIDs,
	})

	metrics.StartCollector(ctx, metrics.StatsSource{
		BlacklistCount:  blacklist.Count,
		WarnedUserCount: warnings.WarnedUsers,
		AdminGroupCount: admins.GroupCount,
	}, cfg.MetricsInterval)

	var ready atomic.Bool
	handler := routing.SetupRouter(routing.Config{
		Webhook:    line.NewWebhookHandler(cfg.Line.ChannelSecret, dispatcher),
		Logger:     log.Logger,
		Ready:      ready.Load,
		TrustProxy: cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("address", srv.Addr).
			Str("prefix", cfg.CommandPrefix).
			Int("super_admins", len(cfg.AdminIDs)).
			Msg("Starting HTTP server")
		ready.Store(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		ready.Store(false)
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// logLastSaved reports when each moderation document was last written, so a stale or
// empty data directory is visible at startup.
func logLastSaved(ctx context.Context, store database.Store) {
	event := log.Info()
	for _, name := range moderation.Documents {
		updatedAt, err := store.UpdatedAt(ctx, name)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("document", name).Msg("Failed to read document update time")
		case updatedAt.IsZero():
			event.Str(name, "never")
		default:
			event.Time(name, updatedAt)
		}
	}
	event.Msg("Moderation documents last saved")
}

// loadAdminIDs reads user IDs from a file, one per line. Blank lines and lines starting with
// # are skipped, as are lines that are not valid user IDs.
func loadAdminIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open admins file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !userIDPattern.MatchString(line) {
			log.Warn().Int("line", lineNo).Str("value", line).Msg("Skipping invalid user ID in admins file")
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read admins file: %w", err)
	}
	return ids, nil
}
