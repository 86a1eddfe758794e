package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobledger/internal/app"
	"jobledger/internal/engine"
	"jobledger/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "jl",
	Short: "Job ledger CLI",
	Long: `jl runs a service marketplace ledger: clients post job requests,
contractors claim them, and clients approve, pay and review the work.

- Jobs move Pending -> InProgress -> Completed; Cancelled is the exit.
- A job has at most one contractor. Direct claims race; the first one wins.
- Claim requests let the client pick: accepting one declines the rest.
- Payment needs client approval. Reviews feed the contractor's mean rating.
- Every change lands in the event log; view it with 'jl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(&logger.Config{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
		})
		return app.LoadEnv(viper.GetString("workspace"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "", "acting client or contractor id")
	flags.String("db-driver", "sqlite", "database driver (sqlite or pgx)")
	flags.String("db-dsn", "", "database DSN (pgx only)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")
	for _, name := range []string{"workspace", "json", "actor-id", "db-driver", "db-dsn", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(claimCmd())
	rootCmd.AddCommand(approvalCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(completionCmd())
	rootCmd.AddCommand(contractorCmd())
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

// --- helpers ---

func openOptions() app.Options {
	return app.Options{
		Workspace: viper.GetString("workspace"),
		Driver:    viper.GetString("db-driver"),
		DSN:       viper.GetString("db-dsn"),
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	env, err := app.Open(openOptions())
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Engine)
}

func actorID() (string, error) {
	id := strings.TrimSpace(viper.GetString("actor-id"))
	if id == "" {
		return "", fmt.Errorf("--actor-id (or JL_ACTOR_ID) required")
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
