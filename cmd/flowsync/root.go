package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/flowsync/pkg/flowsync/config"
	"github.com/jamesainslie/flowsync/pkg/flowsync/detector"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
	"github.com/jamesainslie/flowsync/pkg/flowsync/state"
	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

var rootCmd = &cobra.Command{
	Use:   "flowsync",
	Short: "Track and synchronize project custom code with the remote",
	Long: `Flowsync tracks the custom code files of a low-code project export,
detects local changes since the last synchronization, infers symbol
renames, and pushes the delta to the remote.

Examples:
  flowsync status            # Show what changed since the last sync
  flowsync push              # Push the current delta to the remote
  flowsync watch             # Track edits live
  flowsync history           # List past sync rounds`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringP("root", "r", ".", "project root directory")
	rootCmd.PersistentFlags().StringP("branch", "b", "", "branch name for sync rounds")
	rootCmd.PersistentFlags().String("project-id", "", "remote project id")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "mirror debug logs to stderr")

	_ = viper.BindPFlag("project_root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("branch", rootCmd.PersistentFlags().Lookup("branch"))
	_ = viper.BindPFlag("project_id", rootCmd.PersistentFlags().Lookup("project-id"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()
	return rootCmd.Execute()
}

// engine bundles the wired-up core components for one invocation.
type engine struct {
	cfg      *config.Config
	layout   project.Layout
	store    *state.Store
	detector *detector.Detector
}

// loadEngine loads configuration, initializes logging, and builds the
// store and detector for the configured project root.
func loadEngine(cmd *cobra.Command) (*engine, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	// Flags override the config file.
	if flag, _ := cmd.Flags().GetString("branch"); flag != "" {
		cfg.Branch = flag
	}
	if flag, _ := cmd.Flags().GetString("project-id"); flag != "" {
		cfg.ProjectID = flag
	}

	rotation, err := logging.ParseRotationConfig(
		cfg.Logging.Rotation.MaxSize,
		cfg.Logging.Rotation.MaxAge,
		cfg.Logging.Rotation.MaxBackups,
		cfg.Logging.Rotation.Daily,
	)
	if err != nil {
		return nil, err
	}
	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
		Rotation:   rotation,
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	layout := project.NewLayout(cfg.ProjectRoot)
	store := state.New(layout.StatePath(), func(category types.Category, key string) string {
		return layout.Path(category, key)
	})
	if err := store.Load(); err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		layout:   layout,
		store:    store,
		detector: detector.New(store, layout, nil),
	}, nil
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// readFileOrEmpty reads a file, treating a missing one as empty content.
func readFileOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
