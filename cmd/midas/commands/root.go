package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath *string

var rootCmd = &cobra.Command{
	Use:   "midas",
	Short: "midas drives loyalty-scheme merchant integrations: balance, join and the async callback listener.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The midas configuration file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
