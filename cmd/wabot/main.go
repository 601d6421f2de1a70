package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wabot/internal/agent"
	"wabot/internal/bus"
	"wabot/internal/channel"
	"wabot/internal/config"
	"wabot/internal/domain"
	"wabot/internal/gateway"
	"wabot/internal/metrics"
	"wabot/internal/persona"
	"wabot/internal/plugin"
	"wabot/internal/provider"
	"wabot/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = newLogger("info")

	root := &cobra.Command{
		Use:   "wabot",
		Short: "wabot: WhatsApp study-group assistant",
		Long:  "wabot dispatches WhatsApp commands to plugins, answers free-form chat through a language model, and relays classroom and reminder updates into the class group.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.wabot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())
	root.AddCommand(wizardCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := resolveConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			dataDir := config.ExpandPath(cfg.General.DataDir)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data_dir", dataDir)
			logger.Info("next: set chat.adminIds, gateway.baseUrl and resolver.apiKey, then run 'wabot serve'")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (intake server + message loop)",
		Long:  "Starts the webhook intake server, the optional gateway event stream, the retention sweeper and the message loop. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.General.LogLevel)

	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.History.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Seed(ctx, cfg.Chat.AdminIDs, cfg.Chat.AdminMarker); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	if len(cfg.Chat.AdminIDs) == 0 {
		logger.Warn("no admins configured, admin commands are unreachable")
	}

	zone, err := time.LoadLocation(cfg.Chat.Timezone)
	if err != nil {
		logger.Warn("cannot load timezone, using UTC", "timezone", cfg.Chat.Timezone, "error", err)
		zone = time.UTC
	}

	gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.Token,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second, logger)

	var model domain.ModelClient
	if cfg.Resolver.Enabled {
		oa := provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.Resolver.APIKey,
			APIBase: cfg.Resolver.BaseURL,
			Model:   cfg.Resolver.Model,
			Timeout: time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second,
			Logger:  logger,
		})
		if err := oa.Healthy(ctx); err != nil {
			logger.Warn("resolver model unhealthy at startup", "model", cfg.Resolver.Model, "error", err)
		} else {
			logger.Info("resolver model healthy", "model", cfg.Resolver.Model)
		}
		model = oa
	} else {
		logger.Info("resolver disabled, free-form chat gets the static greeting")
	}

	personas := persona.NewLibrary(logger)
	if cfg.Resolver.PersonaDir != "" {
		if err := personas.LoadDirectory(cfg.Resolver.PersonaDir); err != nil {
			logger.Warn("cannot load personas", "dir", cfg.Resolver.PersonaDir, "error", err)
		}
	}

	registry := plugin.NewRegistry()
	registry.MustRegister(plugin.NewPing())
	registry.MustRegister(plugin.NewSettings(st, logger))
	registry.MustRegister(plugin.NewBlacklist(st, logger))
	registry.MustRegister(plugin.NewClassroom(gw, st, zone, cfg.Chat.ClassroomGroupID, logger))
	registry.MustRegister(plugin.NewReminder(gw, st, logger))

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	var adminID string
	if len(cfg.Chat.AdminIDs) > 0 {
		adminID = cfg.Chat.AdminIDs[0]
	}

	// Due reminders surface as a bare reminder event so delivery runs
	// through the same pipeline as a webhook trigger.
	trigger := func() {
		messageBus.Publish(domain.Event{
			From:         adminID + "@s.whatsapp.net",
			DocumentType: domain.DocTypeReminder,
			Channel:      "sweeper",
			RequestID:    uuid.NewString(),
			ReceivedAt:   time.Now(),
		})
	}
	sweeper, err := store.NewSweeper(st, cfg.History.SweepSchedule, cfg.History.RetentionDays, trigger, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	loop := agent.NewLoop(agent.LoopConfig{
		Events:          messageBus.Events(),
		Registry:        registry,
		Settings:        st,
		History:         st,
		Gateway:         gw,
		Model:           model,
		Personas:        personas,
		Persona:         cfg.Resolver.Persona,
		Metrics:         metrics.Collector,
		Logger:          logger,
		Concurrency:     cfg.Chat.MaxConcurrent,
		Debug:           cfg.General.Debug,
		ModelTimeout:    time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second,
		MaxHistoryPairs: cfg.Resolver.MaxHistoryPairs,
		DefaultZone:     zone,
	})

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}
	intake := channel.NewIntake(channel.IntakeConfig{
		Host:             cfg.Intake.Host,
		Port:             cfg.Intake.Port,
		Secret:           cfg.Intake.WebhookSecret,
		AdminID:          adminID,
		ClassroomGroupID: cfg.Chat.ClassroomGroupID,
		MetricsEndpoint:  metricsEndpoint,
		Metrics:          metrics.Collector,
		Logger:           logger,
	}, messageBus)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return intake.Start(gctx) })
	if cfg.Gateway.StreamURL != "" {
		stream := channel.NewStream(channel.StreamConfig{
			URL:     cfg.Gateway.StreamURL,
			Token:   cfg.Gateway.Token,
			Metrics: metrics.Collector,
			Logger:  logger,
		}, messageBus)
		g.Go(func() error { return stream.Start(gctx) })
	}

	logger.Info("wabot running. Press Ctrl+C to stop.",
		"intake", fmt.Sprintf("%s:%d", cfg.Intake.Host, cfg.Intake.Port),
		"debug", cfg.General.Debug)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and database status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)
			logger.Info("gateway", "base_url", cfg.Gateway.BaseURL, "stream", cfg.Gateway.StreamURL != "")
			logger.Info("chat", "admins", len(cfg.Chat.AdminIDs), "classroom_group", cfg.Chat.ClassroomGroupID, "debug", cfg.General.Debug)

			st, err := store.New(cfg.History.DBPath, logger)
			if err != nil {
				logger.Info("database", "path", cfg.History.DBPath, "open", false, "error", err)
				return nil
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}
			logger.Info("database", "path", cfg.History.DBPath,
				"history_rows", stats.HistoryRows,
				"pending_reminders", stats.PendingReminders,
				"blacklisted", stats.BlacklistSize)

			if cfg.Resolver.Enabled {
				oa := provider.NewOpenAI(provider.OpenAIConfig{
					APIKey:  cfg.Resolver.APIKey,
					APIBase: cfg.Resolver.BaseURL,
					Model:   cfg.Resolver.Model,
					Timeout: 10 * time.Second,
					Logger:  logger,
				})
				if err := oa.Healthy(ctx); err != nil {
					logger.Info("resolver", "model", cfg.Resolver.Model, "healthy", false, "error", err)
				} else {
					logger.Info("resolver", "model", cfg.Resolver.Model, "healthy", true)
				}
			} else {
				logger.Info("resolver", "enabled", false)
			}
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [to] [message...]",
		Short: "Send a one-off message through the gateway",
		Long:  "Sends a text message to a phone number or group id using the configured gateway. Useful for smoke-testing the gateway connection.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.Token,
				time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second, logger)

			ctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second)
			defer cancel()

			to := args[0]
			text := strings.Join(args[1:], " ")
			if err := gw.SendMessage(ctx, to, text); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			logger.Info("sent", "to", to)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. chat.adminMarker)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.debug true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
