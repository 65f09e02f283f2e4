package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// Populated by the root PersistentPreRunE.
var (
	appConfig Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "certscope",
	Short:         "TLS configuration grading and certificate transparency analysis",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		if err := initViper(v, cfgFile); err != nil {
			return err
		}
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		applyLogFlags(cmd.Flags(), &cfg.Log)

		l, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		appConfig = cfg
		logger = l

		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("config loaded", zap.String("file", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Sync fails on terminals; nothing to report.
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.certscope.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json or console)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
