package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLocksCmd создаёт группу команд для управления блокировками документов.
func NewLocksCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Manage document locks",
	}

	cmd.AddCommand(newLocksSweepCmd(adminFn, outputFn))

	return cmd
}

func newLocksSweepCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Return documents with expired locks to the pending pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminFn(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()
			out := outputFn()

			reclaimed, err := admin.SweepLocks(cmd.Context())
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Reclaimed %d documents", reclaimed))
			return nil
		},
	}
}
