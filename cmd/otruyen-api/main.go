package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	ConfigPath string
	// LogLevel and LogFormat are empty when the flags were not given, so
	// the configuration file decides.
	LogLevel  string
	LogFormat string
	Verbose   bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otruyen-api",
		Short: "Comic and ebook reading API",
		Long: `otruyen-api serves the OTruyen library: comic and ebook listings read
from a Firebase Realtime Database, plus chapter text extracted on demand
from EPUB files in the media directory.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./otruyen.yaml or ~/.config/otruyen/otruyen.yaml)")
	flags.String("log-level", defaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", defaultLogFormat, "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	cmd.AddCommand(newServeCmd(), newTOCCmd(), newChapterCmd(), newConfigCmd())
	return cmd
}

func readGlobalOptions(cmd *cobra.Command) (globalOptions, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	verbose, _ := flags.GetBool("verbose")

	opts := globalOptions{ConfigPath: configPath, Verbose: verbose}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		level = strings.ToLower(strings.TrimSpace(level))
		if !validLogLevel(level) {
			return globalOptions{}, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", level)
		}
		opts.LogLevel = level
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		format = strings.ToLower(strings.TrimSpace(format))
		if format != "text" && format != "json" {
			return globalOptions{}, fmt.Errorf("--log-format must be one of text, json: %q", format)
		}
		opts.LogFormat = format
	}
	return opts, nil
}

// logger builds the process logger. Flags win over the configured values.
func (o globalOptions) logger(w io.Writer, configLevel, configFormat string) *slog.Logger {
	level := firstNonEmpty(o.LogLevel, configLevel, defaultLogLevel)
	if o.Verbose {
		level = "debug"
	}
	return buildLogger(w, level, firstNonEmpty(o.LogFormat, configFormat, defaultLogFormat))
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
