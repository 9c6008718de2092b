// =============================================================================
// NaPTAN Import - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (naptan-import)
//   ├── importCmd   (naptan-import import)
//   ├── refreshCmd  (naptan-import refresh)
//   ├── validateCmd (naptan-import validate)
//   ├── selftestCmd (naptan-import selftest)
//   └── versionCmd  (naptan-import version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the configuration file named by --config
//   2. Sets up the slog logger (--verbose forces debug level)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ginjaninja78/naptan-xml-import/internal/config"
	"github.com/ginjaninja78/naptan-xml-import/internal/converter"
	"github.com/ginjaninja78/naptan-xml-import/internal/docstore"
	"github.com/ginjaninja78/naptan-xml-import/internal/fetch"
	"github.com/ginjaninja78/naptan-xml-import/internal/logging"
	"github.com/ginjaninja78/naptan-xml-import/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// cfg is the configuration loaded before the subcommand runs.
var cfg *config.Config

// logger is the application logger, set up from cfg.
var logger *slog.Logger

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "naptan-import",

	Short: "NaPTAN Import - Merge requested stops, stop areas and localities into NaPTAN XML",

	Long: `NaPTAN Import merges rows from a request workbook into the NaPTAN registry
documents. Each row is filled into the XML template for its entity type and
inserted into the document its primary key belongs to.

Key Features:
  - Duplicate primary keys are rejected unless --overwrite is given
  - Field rules (ATCO codes, TIPLOCs, name lengths, locality references)
  - Registry documents downloaded from the NaPTAN service on demand
  - A per-row report and run log for every batch

Example Usage:
  naptan-import import --file request.xlsx              # Import a workbook
  naptan-import import --file request.xlsx --overwrite  # Replace existing entities
  naptan-import refresh                                 # Re-download the registry documents
  naptan-import validate --file request.xlsx            # Check field rules only
  naptan-import selftest                                # Run the validator self-test`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
// An interrupt cancels the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initConfig loads the configuration and installs the logger.
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger = logging.Setup(level, cfg.LogFormat, os.Stderr)
	logger.Debug("configuration loaded", "path", cfgFile, "registry_dir", cfg.RegistryDir, "templates_dir", cfg.TemplatesDir)
	return nil
}

// =============================================================================
// SHARED CONSTRUCTORS
// =============================================================================

func newStore() *docstore.Store {
	return docstore.New(cfg.RegistryDir, cfg.LocalityDocument)
}

func newLibrary() *converter.Library {
	return converter.NewLibrary(cfg.TemplatesDir)
}

func newFileManager() *utils.FileManager {
	return utils.NewFileManager(cfg.RegistryDir)
}

func newClient() *fetch.Client {
	return fetch.New(cfg.NaPTAN.BaseURL, cfg.NaPTAN.Timeout)
}
