package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tobilg/caddyserver-soqlstudio-module/database"
)

const appName = "soqlctl"

// Output modes.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// app holds the state shared by all subcommands of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	logger   *zap.Logger
	closeLog func() error
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs the command line in args.
func execute(args []string, stdout, stderr io.Writer) error {
	a := newApp()
	defer a.close()

	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

func newApp() *app {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", appName))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &app{v: v, logger: zap.NewNop()}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Command-line companion for the Caddy SOQL studio extension",
		Long: `A CLI tool to work with SOQL studio data outside the server.

This tool allows you to:
  - Manage saved queries (list, add, update, remove, show)
  - Filter, search, sort and page a JSON result set
  - Export a JSON result set as CSV, JSON, XLSX, Parquet or Arrow
  - Look up SOQL template suggestions

Settings are read from flags, SOQLCTL_* environment variables and an optional
YAML config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "Config file (default: ./config.yaml or ~/.config/soqlctl/config.yaml)")
	flags.StringP("storage", "s", "", "Path to the studio storage file holding saved queries")
	flags.String("storage-driver", database.DriverDuckDB, "Storage engine: duckdb or sqlite")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Write logs to this file, rotated, instead of stderr")
	flags.String("output", outputTable, "Output mode: table or json")

	a.bind("storage.path", flags.Lookup("storage"))
	a.bind("storage.driver", flags.Lookup("storage-driver"))
	a.bind("log.level", flags.Lookup("log-level"))
	a.bind("log.file", flags.Lookup("log-file"))
	a.bind("output", flags.Lookup("output"))
	a.v.SetDefault("log.max_size_mb", 10)
	a.v.SetDefault("log.max_backups", 3)

	rootCmd.AddCommand(a.savedCmd())
	rootCmd.AddCommand(a.viewCmd())
	rootCmd.AddCommand(a.exportCmd())
	rootCmd.AddCommand(a.suggestCmd())

	return rootCmd
}

// bind ties a config key to a flag. Binding only fails for a nil flag.
func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

// init reads the config file and sets up logging.
func (a *app) init() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	switch a.output() {
	case outputTable, outputJSON:
	default:
		return fmt.Errorf("invalid output mode %q (use table or json)", a.output())
	}

	logger, closeLog, err := newLogger(a.v)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded config file", zap.String("path", used))
	}
	return nil
}

func (a *app) output() string {
	return strings.ToLower(a.v.GetString("output"))
}

func (a *app) close() {
	_ = a.logger.Sync()
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// newLogger builds a JSON logger writing to a rotated log file, or a console
// logger on stderr when no file is configured.
func newLogger(v *viper.Viper) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	path := v.GetString("log.file")
	if path == "" {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), level)
		return zap.New(core), nil, nil
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		Compress:   true,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(lj), level)
	return zap.New(core), lj.Close, nil
}
