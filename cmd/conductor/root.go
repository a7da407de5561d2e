package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/secondbreakfast/conductor/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CONDUCTOR"

var Cmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor CLI",
	Long:  "A pipeline server that chains prompts across AI providers and turns flows into runnable, repeatable runs",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set global viper options
		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`, // convert hyphens to underscores
			`.`, `_`, // convert dots to underscores
		))
		viper.AutomaticEnv()

		// Bind all flags from the current command persistent parent flags
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		// Load config and env files
		if err := config.InitConfig(); err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home-dir", "", "Path to the conductor home directory")

	viper.BindPFlag("home_dir", pflags.Lookup("home-dir"))

	// Add subcommands
	Cmd.AddCommand(runCmd, dbCmd, apiKeyCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
