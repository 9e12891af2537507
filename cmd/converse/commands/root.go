// Package commands provides the CLI commands for Converse.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/converse-ai/converse/internal/api"
	"github.com/converse-ai/converse/internal/config"
	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/internal/session"
	"github.com/converse-ai/converse/pkg/types"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "converse",
	Short: "Converse - streaming chat conversation engine",
	Long: `Converse manages streaming chat conversations against a remote
backend: token streaming, transcript persistence, title generation,
and learned-preference extraction.

Run 'converse chat' for an interactive session, or 'converse serve'
to expose the engine over a local HTTP API.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("converse %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogging() {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	if !printLogs {
		cfg.Output = io.Discard
	}
	logging.Init(cfg)
}

// buildEngine loads configuration and wires the engine against the
// configured backend.
func buildEngine(directory string) (*session.Engine, *types.Config, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, nil, err
	}

	appConfig, err := config.Load(directory)
	if err != nil {
		return nil, nil, err
	}
	if appConfig.BaseURL == "" {
		return nil, nil, fmt.Errorf("no backend configured: set baseUrl in the config file or CONVERSE_BASE_URL")
	}

	stream := api.NewStreamClient(appConfig.BaseURL, appConfig.APIKey)
	client := api.NewClient(appConfig.BaseURL, appConfig.APIKey)
	be := session.NewBackend(stream, client)

	identity := api.Anonymous
	if user := os.Getenv("CONVERSE_USER"); user != "" {
		identity = api.StaticIdentity(user)
	}

	return session.NewEngine(appConfig, be, identity), appConfig, nil
}
