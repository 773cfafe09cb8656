package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options holds shared configuration for the live and annotate commands
type Options struct {
	InputPath     string
	NthFrame      int
	NumEngines    int
	Backend       string
	WorkerScript  string
	WorkerTimeout string
	JPEGQuality   int
}

// dbAnnotation marks how a command uses the session database.
const (
	dbAnnotation = "database"
	dbRequired   = "required"
	dbOptional   = "optional"
)

var (
	// DB is the global database connection shared by subcommands. It is nil
	// when the command does not use one or an optional connection failed.
	DB *store.Store
	// dbURL is the connection string
	dbURL string

	configPath string
	verbose    bool
	logFile    string

	logger = zap.NewNop().Sugar()
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "emojicam",
	Short:   "Real-time facial emotion overlay for webcams and video files",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose, logFile)

		mode := cmd.Annotations[dbAnnotation]
		if mode == "" {
			return nil
		}
		if dbURL == "" {
			dbURL = resolveDBURL()
		}

		ctx := cmd.Context()
		if mode == dbOptional {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
		}

		// Use the command's context (which will be cancellable) for the connection
		var err error
		DB, err = store.New(ctx, dbURL)
		if err != nil {
			DB = nil
			if mode == dbOptional {
				fmt.Fprintf(os.Stderr, "⚠️  Session logging disabled: %v\n", err)
				logger.Debugw("database unavailable", "url", redactURL(dbURL), "error", err)
				return nil
			}
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
		_ = logger.Sync()
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: built from POSTGRES_* or postgres://localhost:5432/emojicam)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the overlay settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
}

// resolveDBURL builds the connection string from the environment.
func resolveDBURL() string {
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	// Fallback to local default if no env vars are present
	return "postgres://localhost:5432/emojicam"
}

// redactURL hides the password before a URL is logged.
func redactURL(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Redacted()
	}
	return "<invalid url>"
}

// newLogger writes human-readable logs to stderr and, with path set, JSON logs
// to a rotating file.
func newLogger(debug bool, path string) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}
