package commands

import (
	"fmt"
	"os"
	"time"

	"midas/internal/model"
	"midas/lib/configutil"
	"midas/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var balanceMerchant *string
var balanceAccount *string
var balanceCredentials *string

func init() {
	balanceMerchant = balanceCmd.Flags().String("merchant", "", "The merchant slug to fetch a balance from.")
	balanceAccount = balanceCmd.Flags().String("account", "", "The internal account id.")
	balanceCredentials = balanceCmd.Flags().String("credentials", "credentials.json5", "A json5 file holding the account's scheme credentials.")
	balanceCmd.MarkFlagRequired("merchant")
	balanceCmd.MarkFlagRequired("account")
	rootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance --merchant <slug> --account <id> [--credentials <path>]",
	Short: "Logs into a merchant scheme and prints the account's balance and transactions.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		credentials, err := configutil.ReadConfig[map[string]any](*balanceCredentials)
		if err != nil {
			serviceutil.Fatal("failed to read credentials", err)
		}

		ctx := cmd.Context()
		a, cleanup, err := buildAgent(ctx, cfg, *balanceMerchant, *balanceAccount, model.JourneyLink)
		if err != nil {
			serviceutil.Fatal("failed to build agent", err)
		}
		defer cleanup()

		session, err := a.Login(ctx, credentials)
		if err != nil {
			serviceutil.Fatal("failed to login", err)
		}
		balance, err := a.Balance(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to fetch balance", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Points", "Value", "Currency"})
		t.AppendRow(table.Row{balance.Points, balance.Value, balance.Currency})
		t.SetStyle(table.StyleRounded)
		t.Render()

		if len(balance.Transactions) == 0 {
			return
		}
		fmt.Println()
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Description", "Points"})
		for _, tx := range balance.Transactions {
			t.AppendRow(table.Row{tx.Date.Format(time.DateOnly), tx.Description, tx.Points})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
