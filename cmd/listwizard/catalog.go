package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func catalogCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the wizard steps and sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			cat := a.sessions.Engine().Catalog
			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"version":  cat.Version(),
					"sections": cat.Sections(),
					"steps":    cat.Steps(),
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tKIND\tWRITES\tOPTIONS")
			for _, s := range cat.Steps() {
				values := make([]string, 0, len(s.Options))
				for _, o := range s.Options {
					values = append(values, o.Value)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s.%s\t%s\n", s.ID, s.Kind, s.Section, s.Field, strings.Join(values, ","))
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "SECTION\tTITLE")
			for _, sec := range cat.Sections() {
				fmt.Fprintf(tw, "%s\t%s\n", sec.ID, sec.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}
