package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alextrx818/matchpipe/internal/pipeline"
)

// newStatusCmd reports per-entry pipeline progress from the ledger.
// Entries the origin produced but some stage never finished are the
// ones operators look for.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress per fetch id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.led.Entries(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ledger is empty")
				return nil
			}

			done := color.New(color.FgGreen).SprintFunc()
			pending := color.New(color.FgYellow).SprintFunc()
			stalled := color.New(color.FgRed, color.Bold).SprintFunc()

			stages := pipeline.Order[1:]
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %-22s %s\n", "FETCH ID", "CREATED", strings.Join(commandNames(stages), " "))

			for _, e := range entries {
				marks := make([]string, 0, len(stages))
				complete := true
				for _, stage := range stages {
					if _, ok := e.Completed[stage]; ok {
						marks = append(marks, done(pad("ok", stage)))
					} else {
						complete = false
						marks = append(marks, pending(pad("--", stage)))
					}
				}
				// Pad before coloring; ANSI codes would skew the column.
				id := fmt.Sprintf("%-28s", e.FetchID)
				if !complete {
					id = stalled(id)
				}
				fmt.Fprintf(out, "%s %-22s %s\n", id, e.CreatedAt, strings.Join(marks, " "))
			}
			return nil
		},
	}
}

func commandNames(stages []string) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = pipeline.CommandName(s)
	}
	return names
}

// pad renders a mark at the width of the stage's column header.
func pad(mark, stage string) string {
	w := len(pipeline.CommandName(stage))
	if len(mark) >= w {
		return mark
	}
	return mark + strings.Repeat(" ", w-len(mark))
}
