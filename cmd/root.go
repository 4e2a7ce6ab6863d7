// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scriptfill/internal/config"
	"github.com/xkilldash9x/scriptfill/internal/observability"
	"github.com/xkilldash9x/scriptfill/internal/scripts"
)

type contextKey string

const configKey contextKey = "config"

// repoProvider opens the configured script repository. Tests replace it to
// avoid touching real backends.
type repoProvider func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (scripts.Repository, func(), error)

func defaultRepoProvider(ctx context.Context, cfg config.Interface, logger *zap.Logger) (scripts.Repository, func(), error) {
	return scripts.Open(ctx, cfg.Store(), logger)
}

// deps are the collaborators shared by the subcommands.
type deps struct {
	cfgFile  string
	openRepo repoProvider
}

// NewRootCommand builds a fresh command tree, so repeated executions never
// share flag state.
func NewRootCommand() *cobra.Command {
	return newRootCmd(&deps{openRepo: defaultRepoProvider})
}

func newRootCmd(d *deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptfill",
		Short:         "Finds the chat composer on a page and fills it with canned scripts.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, d.cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.Initialize(cfg.Logger(), zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
			observability.GetLogger().Debug("Starting scriptfill", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	root.SetVersionTemplate("scriptfill version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&d.cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.scriptfill/config.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("store", "", "script store backend (file, postgres, remote)")
	flags.Bool("debug", false, "log every candidate the detector scores or rejects")
	flags.Bool("headful", false, "show the browser window")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newFillCmd(d))
	root.AddCommand(newScriptsCmd(d))
	return root
}

// initializeConfig layers the config file, SCRIPTFILL_* environment
// variables and command line flags onto v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.scriptfill")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCRIPTFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	flags := cmd.Flags()
	bindings := map[string]string{
		"log-level": "logger.level",
		"store":     "store.type",
		"debug":     "detection.debug",
	}
	for flag, key := range bindings {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	if f := flags.Lookup("headful"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("browser.headless", false)
	}
	return nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (config.Interface, error) {
	cfg, ok := cmd.Context().Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute runs the command line and reports failures on stderr.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}
