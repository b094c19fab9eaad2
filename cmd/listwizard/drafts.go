package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/listwizard/pkg/schema"
)

func draftsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and manage stored drafts",
	}
	cmd.AddCommand(
		draftsListCmd(opts),
		draftsShowCmd(opts),
		draftsHistoryCmd(opts),
		draftsDeleteCmd(opts),
		draftsImportCmd(opts),
	)
	return cmd
}

func draftsListCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := schema.DraftStatus(status)
			switch st {
			case "", schema.DraftStatusInProgress, schema.DraftStatusSubmitted:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			drafts, err := a.sessions.ListDrafts(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tLAST STEP\tSECTIONS\tUPDATED")
			for _, d := range drafts {
				v := a.sessions.Engine().Progress(d.Document)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
					d.ID, d.Status, d.LastStep, v.Completed, v.Total, d.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft or submitted)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum drafts to list")
	return cmd
}

func draftsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a draft, its progress and its sessions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			d, err := a.sessions.GetDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sessions, err := a.sessions.DraftSessions(cmd.Context(), d.ID, 0)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"draft":    d,
				"progress": a.sessions.Engine().Progress(d.Document),
				"sessions": sessions,
			})
		},
	}
}

func draftsHistoryCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Replay the event log of every session opened on a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			hist, err := a.sessions.DraftHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), hist)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tSTARTED\tEVENTS\tANSWERS\tCLEARED\tLAST STEP")
			for _, h := range hist {
				var events, answers, cleared int
				status, last := h.Status, h.CurrentStep
				if r := h.Replay; r != nil {
					events, cleared = r.Events, len(r.Cleared)
					for _, n := range r.Answers {
						answers += n
					}
					status, last = r.Status, r.LastStep
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					h.ID, status, h.StartedAt.Format(time.RFC3339), events, answers, cleared, last)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the replayed sessions as JSON")
	return cmd
}

func draftsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			if err := a.sessions.DeleteDraft(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func draftsImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a draft document, upgrading legacy layouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(cmd.Context()) }()

			d, err := a.sessions.Import(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (last step %q)\n", d.ID, d.LastStep)
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
