package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/furisto/toolgate/backend/analytics"
	"github.com/furisto/toolgate/frontend/cli/pkg/fail"
	"github.com/furisto/toolgate/shared"
	"github.com/furisto/toolgate/shared/config"
)

var (
	// Version is the version of the CLI
	Version = "unknown"

	// Git Commit is the commit that the CLI was built from
	GitCommit = "unknown"

	// BuildDate is the date the CLI was built
	BuildDate = "unknown"
)

type globalOptions struct {
	LogLevel    LogLevel
	ConfigPath  string
	MetricsFile string
}

func NewRootCmd() *cobra.Command {
	options := globalOptions{}
	var analyticsClient analytics.Client

	cmd := &cobra.Command{
		Use:   "toolgate",
		Short: "toolgate: provider-neutral tool calls and quarantined tool results.",
		Long: `toolgate converts tool calls and tool results between the OpenAI, Anthropic
and Gemini wire formats and quarantines untrusted tool output behind an
isolated model that only answers multiple-choice questions about it.`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userInfo := getUserInfo(ctx)
			manager := getConfigManager(ctx)

			path, err := manager.Path(options.ConfigPath)
			if err != nil {
				return err
			}
			cfg, err := manager.Load(path)
			if err != nil {
				return fail.HandleError(err)
			}

			options.LogLevel = resolveLogLevel(cmd, &options, cfg)
			slog.SetDefault(slog.New(slog.NewJSONHandler(setupLogSink(ctx, userInfo, cmd.ErrOrStderr()), &slog.HandlerOptions{
				Level: options.LogLevel.SlogLevel(),
			})))

			ctx = context.WithValue(ctx, ContextKeyConfigManager, manager)
			ctx = context.WithValue(ctx, ContextKeyConfig, cfg)
			if _, ok := ctx.Value(ContextKeyOutputRenderer).(OutputRenderer); !ok {
				ctx = context.WithValue(ctx, ContextKeyOutputRenderer, NewDefaultRenderer(cmd.OutOrStdout()))
			}
			if _, ok := ctx.Value(ContextKeyMetrics).(*prometheus.Registry); !ok {
				ctx = context.WithValue(ctx, ContextKeyMetrics, prometheus.NewRegistry())
			}
			if _, ok := ctx.Value(ContextKeyAnalytics).(analytics.Client); !ok {
				analyticsClient, err = analytics.NewClient(cfg.Analytics.PosthogKey, cfg.Analytics.Endpoint)
				if err != nil {
					slog.Warn("analytics disabled", "error", err)
					analyticsClient = analytics.NoopClient{}
				}
				ctx = context.WithValue(ctx, ContextKeyAnalytics, analyticsClient)
			}

			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			if options.MetricsFile != "" {
				if err := prometheus.WriteToTextfile(options.MetricsFile, getMetrics(cmd.Context())); err != nil {
					errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
				}
			}
			if analyticsClient != nil {
				if err := analyticsClient.Close(); err != nil {
					slog.Debug("failed to flush analytics", "error", err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.PersistentFlags().Var(&options.LogLevel, "log-level", "set the log level")
	cmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "", "path to toolgate.yaml (defaults to the user config directory)")
	cmd.PersistentFlags().StringVar(&options.MetricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")

	cmd.AddGroup(
		&cobra.Group{
			ID:    "protocol",
			Title: "Tool Protocol",
		},
	)

	cmd.AddGroup(
		&cobra.Group{
			ID:    "quarantine",
			Title: "Quarantine",
		},
	)

	cmd.AddGroup(
		&cobra.Group{
			ID:    "system",
			Title: "System Commands",
		},
	)

	cmd.AddCommand(NewCallsCmd())
	cmd.AddCommand(NewResultsCmd())

	cmd.AddCommand(NewQuarantineCmd())
	cmd.AddCommand(NewHistoryCmd())

	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewAPIKeyCmd())
	return cmd
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic occurred: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (e *LogLevel) String() string {
	if e == nil {
		return ""
	}
	return string(*e)
}

func (e *LogLevel) Set(v string) error {
	for _, level := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if v == string(level) {
			*e = level
			return nil
		}
	}
	return errors.New(`must be one of "debug", "info", "warn", or "error"`)
}

func (e *LogLevel) Type() string {
	return "log-level"
}

func (e *LogLevel) SlogLevel() slog.Level {
	switch *e {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}

	return slog.LevelInfo
}

// resolveLogLevel prefers the flag, then TOOLGATE_LOG_LEVEL, then the config
// file.
func resolveLogLevel(cmd *cobra.Command, options *globalOptions, cfg *config.Config) LogLevel {
	if cmd.Flags().Changed("log-level") {
		return options.LogLevel
	}

	var level LogLevel
	if err := level.Set(os.Getenv("TOOLGATE_LOG_LEVEL")); err == nil {
		return level
	}
	if err := level.Set(cfg.LogLevel); err == nil {
		return level
	}
	return LogLevelInfo
}

// setupLogSink writes logs to stderr, keeping stdout free for command
// output, and to a rotating file in the log directory.
func setupLogSink(ctx context.Context, userInfo shared.UserInfo, stderr io.Writer) io.Writer {
	if disable, ok := ctx.Value(ContextKeyDisableFileLogs).(bool); ok && disable {
		return stderr
	}

	logDir, err := userInfo.LogDir()
	if err != nil {
		return stderr
	}

	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "toolgate.json"),
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
	return io.MultiWriter(stderr, fileLogger)
}
