package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hrygo/skillgate/plugin/ai/agent"
	"github.com/hrygo/skillgate/plugin/ai/router"
)

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <query>",
		Short: "Explain which skill a query routes to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := agent.NewRouter(instanceProfile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.Explain(strings.Join(args, " ")))
			return nil
		},
	}
}

func newSkillsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skills",
		Short: "List registered skills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := agent.NewRouter(instanceProfile)
			if err != nil {
				return err
			}
			return printSkills(cmd.OutOrStdout(), r.List())
		},
	}
}

func printSkills(w io.Writer, skills []router.Info) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIORITY\tTRIGGERS\tTOOLS")
	for _, s := range skills {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Name, s.Priority, s.TriggerCount, strings.Join(s.Tools, ","))
	}
	return tw.Flush()
}
