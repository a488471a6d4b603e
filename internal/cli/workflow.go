package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/armagh-dev/armag-sub002/internal/domain"
	"github.com/armagh-dev/armag-sub002/internal/workflow"
)

// NewWorkflowCmd создаёт группу команд для управления workflow-конфигурациями.
func NewWorkflowCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow configurations",
	}

	cmd.AddCommand(
		newWorkflowValidateCmd(outputFn),
		newWorkflowApplyCmd(adminFn, outputFn),
		newWorkflowShowCmd(adminFn, outputFn),
	)

	return cmd
}

func newWorkflowValidateCmd(outputFn OutputFn) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow definition file without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			spec, warnings, err := LoadSpecFile(file)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				out.Warn(w)
			}
			out.Success(fmt.Sprintf("Workflow %q is valid: %d actions", spec.Name, len(spec.Actions)))
			printActions(out, spec.Actions, spec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowApplyCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate and store a workflow definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminFn(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()
			out := outputFn()

			spec, warnings, err := admin.ApplyWorkflow(cmd.Context(), file)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				out.Warn(w)
			}
			out.Success(fmt.Sprintf("Workflow %q applied: %d actions", spec.Name, len(spec.Actions)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workflow definition file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowShowCmd(adminFn AdminFn, outputFn OutputFn) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a stored workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminFn(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()
			out := outputFn()

			stored, spec, err := admin.ShowWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow %q generation %d, updated %s",
				stored.Name, stored.Generation, stored.UpdatedAt.Format("2006-01-02 15:04:05")))
			printActions(out, spec.Actions, spec)
			return nil
		},
	}
}

func printActions(out *Output, actions []domain.ActionDef, jsonData *workflow.Spec) {
	headers := []string{"NAME", "TYPE", "IMPL", "INPUT", "OUTPUT", "SCHEDULE", "ACTIVE"}
	rows := make([][]string, len(actions))
	for i, def := range actions {
		output := ""
		if def.Output.Type != "" {
			output = def.Output.String()
		}
		rows[i] = []string{
			def.Name,
			string(def.Type),
			def.Impl,
			def.Input.String(),
			output,
			def.Schedule,
			strconv.FormatBool(def.Active),
		}
	}
	out.Print(headers, rows, jsonData)
}
