package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd prints recent runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent probe runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tVERDICT\tPROBE\tCLICKED\tTOOK\tERROR")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
				r.StartedAt.Local().Format(time.DateTime),
				r.Verdict,
				dash(r.Probe),
				r.Clicked,
				r.Duration.Round(100*time.Millisecond),
				dash(r.Error),
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
