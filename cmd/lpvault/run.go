package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/task"
)

var keepGoing bool

var runCmd = &cobra.Command{
	Use:   "run <tasks.yaml>",
	Short: "Replay a scripted list of operations in order",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		tasks, err := task.NewManager(s.log.Logger).LoadTasksYAML(args[0])
		if err != nil {
			return err
		}
		runner := task.NewRunner(s.svc, s.log.Logger)
		runner.ContinueOnError = keepGoing

		results, runErr := runner.Run(cmd.Context(), tasks)
		out := cmd.OutOrStdout()
		for _, res := range results {
			status := "ok"
			if res.Err != nil {
				status = res.Err.Error()
			} else if !res.Output.IsNil() {
				status = "ok " + fixedpoint.Format(res.Output)
			}
			fmt.Fprintf(out, "%-24s %-10s %s\n", res.Task.TaskName, res.Task.Operation, status)
		}
		return runErr
	}),
}

func init() {
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue after a rejected task")
}
