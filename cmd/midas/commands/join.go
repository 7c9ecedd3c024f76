package commands

import (
	"log/slog"
	"os"

	"midas/internal/agent"
	"midas/internal/model"
	"midas/lib/configutil"
	"midas/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var joinMerchant *string
var joinAccount *string
var joinCredentials *string

func init() {
	joinMerchant = joinCmd.Flags().String("merchant", "", "The merchant slug to join.")
	joinAccount = joinCmd.Flags().String("account", "", "The internal account id.")
	joinCredentials = joinCmd.Flags().String("credentials", "credentials.json5", "A json5 file holding the registration credentials and consents.")
	joinCmd.MarkFlagRequired("merchant")
	joinCmd.MarkFlagRequired("account")
	rootCmd.AddCommand(joinCmd)
}

type joinInput struct {
	Credentials map[string]any   `json:"credentials"`
	Consents    []map[string]any `json:"consents"`
}

var joinCmd = &cobra.Command{
	Use:   "join --merchant <slug> --account <id> [--credentials <path>]",
	Short: "Registers a new account with a merchant scheme.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		input, err := configutil.ReadConfig[joinInput](*joinCredentials)
		if err != nil {
			serviceutil.Fatal("failed to read credentials", err)
		}

		ctx := cmd.Context()
		a, cleanup, err := buildAgent(ctx, cfg, *joinMerchant, *joinAccount, model.JourneyJoin)
		if err != nil {
			serviceutil.Fatal("failed to build agent", err)
		}
		defer cleanup()

		result, err := a.Join(ctx, agent.JoinRequest{
			Credentials: input.Credentials,
			Consents:    input.Consents,
		})
		if err != nil {
			serviceutil.Fatal("join failed", err)
		}

		if result.Pending {
			slog.Info("join accepted, awaiting merchant callback", "merchant", *joinMerchant)
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Identifier", "Value"})
		for key, value := range result.Identifiers {
			t.AppendRow(table.Row{key, value})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
