// Armagh Admin — инструмент командной строки для администрирования.
//
// Использование:
//
//	armagh [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workflow  Управление workflow-конфигурациями
//	locks     Управление блокировками документов
//	agents    Наблюдение за агентами
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/armagh-dev/armag-sub002/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = godotenv.Load()

	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "armagh",
		Short:         "Armagh admin — document pipeline administration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	adminFn := func(ctx context.Context) (*cli.Admin, error) { return cli.Connect(ctx) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewWorkflowCmd(adminFn, outputFn),
		cli.NewLocksCmd(adminFn, outputFn),
		cli.NewAgentsCmd(adminFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
