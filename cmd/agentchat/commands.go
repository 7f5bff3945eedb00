package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/api"
	"github.com/Zacy-Sokach/AgentChat/internal/config"
	"github.com/Zacy-Sokach/AgentChat/internal/events"
	"github.com/Zacy-Sokach/AgentChat/internal/lineui"
	"github.com/Zacy-Sokach/AgentChat/internal/logging"
	"github.com/Zacy-Sokach/AgentChat/internal/session"
	"github.com/Zacy-Sokach/AgentChat/internal/tui"
	"github.com/Zacy-Sokach/AgentChat/internal/update"
	"github.com/Zacy-Sokach/AgentChat/internal/utils"
	"github.com/Zacy-Sokach/AgentChat/internal/wallet"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// rootFlags 命令行参数，优先级高于配置文件和环境变量
type rootFlags struct {
	endpoint  string
	configDir string
	interval  time.Duration
	address   string
	logLevel  string
	line      bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   "agentchat",
		Short: "Chat with an onchain AI agent, or let it act on its own",
		Long: `AgentChat is a terminal client for an onchain AI agent service.
Send messages or prompt templates, or switch on autonomous mode and the
agent will keep performing blockchain actions until you stop it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.configDir != "" {
				return os.Setenv("AGENTCHAT_CONFIG_HOME", flags.configDir)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "directory holding config.yaml (default "+utils.GetConfigPathForDisplay()+")")

	f := rootCmd.Flags()
	f.StringVar(&flags.endpoint, "endpoint", "", "agent service base URL")
	f.DurationVar(&flags.interval, "interval", 0, "autonomous poll interval, e.g. 10s")
	f.StringVar(&flags.address, "address", "", "agent wallet address shown in the header")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.BoolVar(&flags.line, "line", false, "use plain line mode instead of the full-screen UI")

	rootCmd.AddCommand(newVersionCmd(), newConfigCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the AgentChat version",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "AgentChat %s\n", Version)
			if !check {
				return nil
			}
			hasUpdate, release, err := update.NewChecker().CheckForUpdate(cmd.Context(), Version)
			if err != nil {
				return fmt.Errorf("检查更新失败: %w", err)
			}
			if hasUpdate {
				fmt.Fprintf(out, "发现新版本 %s: %s\n", release.TagName, release.HTMLURL)
			} else {
				fmt.Fprintf(out, "当前已是最新版本 (最新发布 %s)\n", release.TagName)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Agent.APIKey != "" {
				cfg.Agent.APIKey = "********"
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", utils.GetConfigPathForDisplay(), data)
			return nil
		},
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveConfig(config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "配置已写入 %s\n", utils.GetConfigPathForDisplay())
			return nil
		},
	})
	return configCmd
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f rootFlags) apply(cfg *config.Config) error {
	if f.endpoint != "" {
		cfg.Agent.BaseURL = f.endpoint
	}
	if f.address != "" {
		cfg.Wallet.Address = f.address
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.interval != 0 {
		if f.interval < time.Second || f.interval%time.Second != 0 {
			return fmt.Errorf("--interval must be a whole number of seconds (at least 1s), got %s", f.interval)
		}
		cfg.Autonomous.PollIntervalSeconds = int(f.interval / time.Second)
	}
	return nil
}

func runChat(parent context.Context, flags rootFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Path: logPath}); err != nil {
		return err
	}
	defer logging.Sync()
	logger := logging.L()

	info, err := wallet.NewInfo(cfg.Wallet.Address, cfg.Wallet.NetworkID)
	if err != nil {
		return err
	}

	client, err := api.NewClient(api.Options{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  cfg.Agent.APIKey,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	bus := events.NewMemoryBus()
	bus.OnError(func(e events.Event, err error) {
		logger.Warn("event handler failed", "event", e.Type(), "error", err)
	})

	ctrl := session.New(client,
		session.WithPrompts(cfg.Prompts()),
		session.WithPollInterval(cfg.PollInterval()),
		session.WithEventBus(bus),
		session.WithLogger(logging.Named("session")),
	)
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("agentchat starting",
		"version", Version,
		"endpoint", client.BaseURL(),
		"session_id", ctrl.ID(),
		"poll_interval", ctrl.PollInterval(),
	)

	if flags.line || !isTerminal() {
		return lineui.New(ctrl, bus, lineui.Options{
			In:        os.Stdin,
			Out:       os.Stdout,
			Templates: cfg.Templates,
			Logger:    logger,
		}).Run(ctx)
	}

	tui.Version = Version
	opts := tui.Options{
		Wallet:    info,
		Templates: cfg.Templates,
		Bus:       bus,
		Logger:    logger,
	}
	if cfg.Wallet.RPCURL != "" && info.Address != "" {
		reader, err := wallet.Dial(ctx, cfg.Wallet.RPCURL, info)
		if err != nil {
			logger.Warn("balance lookup disabled", "error", err)
		} else {
			defer reader.Close()
			opts.Balance = reader.Balance
		}
	}
	return tui.Run(ctx, ctrl, opts)
}

func isTerminal() bool {
	for _, fd := range []uintptr{os.Stdin.Fd(), os.Stdout.Fd()} {
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return true
}
