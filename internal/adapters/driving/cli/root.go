// Package cli implements the ragline command line.
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragline/internal/app"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// shutdownTimeout bounds how long the CLI waits for running jobs on exit.
const shutdownTimeout = 30 * time.Second

// noServices marks commands that run without opening storage.
const noServices = "ragline/no-services"

var (
	verbose   bool
	configDir string
)

// EventSource streams job progress.
type EventSource interface {
	Subscribe(buffer int) (<-chan domain.ProgressEvent, func())
}

// Services are the ports the commands use. Tests install fakes with
// SetServices; otherwise they are built from an app.App before each command.
type Services struct {
	KnowledgeBases driving.KnowledgeBaseService
	Ingestion      driving.IngestionService
	Query          driving.QueryService
	Jobs           driving.JobService
	History        driven.JobStore
	Sync           driving.VectorSyncService
	Settings       driving.SettingsService
	Validator      driven.ProviderValidator
	Events         EventSource
	Prompts        driven.PromptStore
}

var (
	kbService        driving.KnowledgeBaseService
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	jobService       driving.JobService
	jobHistory       driven.JobStore
	syncService      driving.VectorSyncService
	settingsService  driving.SettingsService
	providerCheck    driven.ProviderValidator
	eventSource      EventSource
	promptStore      driven.PromptStore
)

// application is the App opened by bootstrap, closed after the command.
var application *app.App

// servicesInjected is true when SetServices supplied the ports.
var servicesInjected bool

var rootCmd = &cobra.Command{
	Use:   "ragline",
	Short: "Local knowledge bases with retrieval-augmented answers",
	Long: `ragline ingests documents into knowledge bases, embeds them with the
provider of your choice and answers questions grounded in their content.

Data lives in ~/.ragline by default. Provider API keys may be stored with
"ragline provider add" or supplied through GOOGLE_API_KEY, OPENAI_API_KEY
and ANTHROPIC_API_KEY (a .env file in the working directory is read).`,
	SilenceUsage:      true,
	PersistentPreRunE: bootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"application directory (default $"+file.HomeEnv+" or ~/.ragline)")
}

// Execute runs the root command, then waits for background jobs and closes
// storage whether or not the command failed.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := teardown(); err == nil {
		err = cerr
	}
	return err
}

// SetVersion sets the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the ports used by commands and disables bootstrap.
func SetServices(s Services) {
	kbService = s.KnowledgeBases
	ingestionService = s.Ingestion
	queryService = s.Query
	jobService = s.Jobs
	jobHistory = s.History
	syncService = s.Sync
	settingsService = s.Settings
	providerCheck = s.Validator
	eventSource = s.Events
	promptStore = s.Prompts
	servicesInjected = true
}

// resetServices clears injected ports.
func resetServices() {
	SetServices(Services{})
	servicesInjected = false
}

func bootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("reading .env: %v", err)
	}

	if servicesInjected || cmd.Annotations[noServices] == "true" {
		return nil
	}

	dir := configDir
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		dir = abs
	}

	a, err := app.New(commandContext(cmd), app.Options{
		Dir:         dir,
		Maintenance: cmd.Annotations[withMaintenance] == "true",
	})
	if err != nil {
		return err
	}
	application = a

	kbService = a.KnowledgeBases
	ingestionService = a.Ingestion
	queryService = a.Query
	jobService = a.Jobs
	jobHistory = a.History
	syncService = a.Sync
	settingsService = a.SettingsService
	providerCheck = a.Validator
	eventSource = a.Events
	promptStore = a.Prompts
	return nil
}

// withMaintenance marks long-running commands that start the scheduler.
const withMaintenance = "ragline/maintenance"

func teardown() error {
	if application == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := application.Close(ctx)
	application = nil
	return err
}

// commandContext returns cmd's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
