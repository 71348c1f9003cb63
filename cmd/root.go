package cmd

import (
	"fmt"
	"os"

	"github.com/gentyr/gentyr-sub005/internal/config"
	"github.com/gentyr/gentyr-sub005/internal/dashboard"
	"github.com/gentyr/gentyr-sub005/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ctodash",
	Short: "CTO dashboard for Claude usage and project health",
	Long: `ctodash aggregates quota usage snapshots, key rotation, automated agents,
triage and test-failure state into a single view for the CLI or the web.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ctodash.yaml)")
	rootCmd.PersistentFlags().String("project-dir", "", "project root (default is $CLAUDE_PROJECT_DIR or the working directory)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("project_dir", rootCmd.PersistentFlags().Lookup("project-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ctodash")
	}
	configErr := viper.ReadInConfig()

	var err error
	cfg, err = config.Load()
	cobra.CheckErr(err)

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if configErr == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}

func newSources() *dashboard.Sources {
	return dashboard.NewSources(cfg, logging.NewLogger("reader"))
}
