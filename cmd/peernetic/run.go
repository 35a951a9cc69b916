package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var seed int64
	var ticks int

	cmd := &cobra.Command{
		Use:       "run {echo|timer|resend|chord|ring}",
		Short:     "Run one of peernetic's testable scenarios and print what happened",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"echo", "timer", "resend", "chord", "ring"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "echo":
				return runEcho(out)
			case "timer":
				return runTimer(out)
			case "resend":
				return runResend(out)
			case "chord":
				return runChord(out)
			case "ring":
				return runRing(out, seed, ticks)
			default:
				return fmt.Errorf("unknown scenario %q", args[0])
			}
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for the ring scenario's unreliable Line")
	cmd.Flags().IntVar(&ticks, "ticks", 500, "maximum number of simulator events to process for the ring scenario")
	return cmd
}
