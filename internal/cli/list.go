package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/stepflow/internal/plan"
	"github.com/vnykmshr/stepflow/pkg/logging"
)

func (a *app) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <plan>",
		Short: "Show the steps a plan registers",
		Args:  cobra.ExactArgs(1),
		RunE:  a.listPlan,
	}
	cmd.Flags().Bool("yaml", false, "print the normalized plan as YAML")
	return cmd
}

func (a *app) listPlan(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		data, err := p.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	q, _, err := p.Build(cmd.Context(), plan.Options{Executor: a.executor, Logger: logging.Nop()})
	if err != nil {
		return err
	}
	defer q.Close()

	mode := "parallel"
	if p.Sequential {
		mode = "sequential"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, %d steps)\n", planName(p, args[0]), mode, q.Len())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTIMEOUT\tSKIP\tRUN")
	for i, s := range q.Steps() {
		ps := p.Steps[i]
		timeout := "-"
		if ps.Timeout > 0 {
			timeout = ps.Timeout.Std().String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", s.Number(), s.Name(), timeout, s.Skipped(), ps.Run)
	}
	return tw.Flush()
}
