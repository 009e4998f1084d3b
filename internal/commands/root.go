// Package commands provides CLI commands for querychat.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/logging"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// errQueryFailed is returned after the failure was already shown to the user
var errQueryFailed = errors.New("query failed")

// globalFlags are shared by every subcommand
type globalFlags struct {
	baseURL  string
	endpoint string
	timeout  int
	verbose  bool
}

// addFlags registers the global flags as persistent flags of cmd
func (g *globalFlags) addFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.baseURL, "base-url", "", "Backend base URL (default from config)")
	pf.StringVar(&g.endpoint, "endpoint", "", "Backend endpoint: chat or analyze")
	pf.IntVar(&g.timeout, "timeout", 0, "Request timeout in seconds (0 = config value)")
	pf.BoolVar(&g.verbose, "verbose", false, "Verbose logging")
}

// queryFlags are the one-shot flags of the root command
type queryFlags struct {
	file       string
	output     string
	stream     bool
	raw        bool
	saveImages string
	copy       bool
	version    bool
}

// NewRootCmd builds the command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	deps = deps.withDefaults()
	global := &globalFlags{}
	qf := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "querychat [query]",
		Short: "Chat client for a natural-language data query backend",
		Long: `querychat sends natural-language questions to a data query backend and
renders the answer: an optional chart, its description and a summary.

Examples:
  querychat chat                          Start the interactive chat
  querychat repl                          Line-mode chat with history
  querychat "Top 5 products by revenue"   Send a single query
  querychat -f question.txt               Read the query from a file
  echo "orders per day" | querychat       Read the query from stdin
  querychat --stream "plot signups"       Show progress while waiting
  querychat serve                         Run the stub backend on :5000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if qf.version {
				fmt.Fprintf(deps.Stdout, "querychat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			query, ok, err := readQuery(qf.file, args, deps.Stdin)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}
			return runQuery(cmd, deps, global, qf, query)
		},
	}

	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	global.addFlags(cmd)

	f := cmd.Flags()
	f.StringVarP(&qf.file, "file", "f", "", "Read query from file")
	f.StringVarP(&qf.output, "output", "o", "", "Save response to file")
	f.BoolVar(&qf.stream, "stream", false, "Use the streaming endpoint and show progress")
	f.BoolVar(&qf.raw, "raw", false, "Print plain text without colours or markdown")
	f.StringVar(&qf.saveImages, "save-images", "", "Save returned charts to this directory")
	f.BoolVar(&qf.copy, "copy", false, "Copy the answer to the clipboard")
	f.BoolVarP(&qf.version, "version", "v", false, "Show version and exit")

	cmd.AddCommand(NewChatCmd(deps, global))
	cmd.AddCommand(NewReplCmd(deps, global))
	cmd.AddCommand(NewConfigCmd(deps))
	cmd.AddCommand(NewServeCmd(deps, global))

	return cmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(NewDependencies()).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errQueryFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// readQuery picks the query from --file, the argument or piped stdin, in that order
func readQuery(file string, args []string, stdin io.Reader) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if len(args) > 0 {
		return args[0], true, nil
	}

	if stdin == nil {
		return "", false, nil
	}
	if f, ok := stdin.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", false, nil
		}
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", false, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

// configPath returns the config file commands read and write
func (d *Dependencies) configPath() (string, error) {
	if d.ConfigPath != "" {
		return d.ConfigPath, nil
	}
	return config.GetConfigPath()
}

// loadSettings loads config and applies flags given on the command line
func loadSettings(cmd *cobra.Command, deps *Dependencies, global *globalFlags) (config.Config, error) {
	path, err := deps.configPath()
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = global.baseURL
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = global.endpoint
	}
	if flags.Changed("timeout") && global.timeout > 0 {
		cfg.TimeoutSeconds = global.timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = global.verbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the injected logger or one built from config.
// Failing to open the log file is not fatal.
func newLogger(deps *Dependencies, cfg config.Config, path string) *zap.Logger {
	if deps.Logger != nil {
		return deps.Logger
	}
	logger, err := logging.New(logging.Options{Path: path, Verbose: cfg.Verbose})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Warning: logging disabled: %v\n", err)
		return logging.Nop()
	}
	return logger
}

// newClient returns the injected client or an HTTP client built from config.
// The returned func releases it.
func newClient(deps *Dependencies, cfg config.Config, logger *zap.Logger) (api.ClientInterface, func(), error) {
	if deps.Client != nil {
		return deps.Client, func() {}, nil
	}

	client, err := api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithEndpoint(cfg.Endpoint),
		api.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, client.Close, nil
}
