package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// NewAgentsCmd создаёт группу команд для наблюдения за агентами.
func NewAgentsCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect agent heartbeats",
	}

	cmd.AddCommand(newAgentsListCmd(adminFn, outputFn))

	return cmd
}

func newAgentsListCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known agents and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminFn(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()
			out := outputFn()

			agents, err := admin.ListAgents(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			headers := []string{"SIGNATURE", "HOST", "STATUS", "TASK", "SINCE", "HEARTBEAT"}
			rows := make([][]string, len(agents))
			for i, a := range agents {
				status := a.Status
				// Переставший обновляться heartbeat важнее заявленного статуса
				if now.Sub(a.UpdatedAt) > StaleAfter {
					status = "STALE"
				}
				rows[i] = []string{
					a.Signature,
					a.Hostname,
					status,
					a.Task,
					a.Since.Format("15:04:05"),
					a.UpdatedAt.Format("15:04:05"),
				}
			}

			out.Print(headers, rows, agents)
			return nil
		},
	}
}
