// Package cli implements the menubot commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/strdr1/telegram-bot-api-sub001/config"
)

var (
	cfgFile    string
	formatFlag string

	// v collects config file, env and bound flag values
	v = viper.New()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "menubot",
	Short:         "Restaurant menu knowledge service",
	Long:          "Caches the restaurant catalog and answers category and dish questions for the chat bot and its language model.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./config.yaml, ./config/config.yaml or /etc/menubot/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().Bool("debug", false, "Log matching traces and source requests")

	_ = v.BindPFlag("matching.debug", RootCmd.PersistentFlags().Lookup("debug"))
}

// loadConfig is replaced in tests
var loadConfig = func() (*config.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	return config.LoadWith(v)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// printResult writes value as indented JSON or text, depending on --format.
func printResult(w io.Writer, value interface{}, text string) error {
	if formatFlag == "json" {
		b, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
