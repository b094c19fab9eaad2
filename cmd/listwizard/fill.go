package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/tui"
	"github.com/rendis/listwizard/pkg/schema"
)

func fillCmd(opts *rootOptions) *cobra.Command {
	var req session.StartRequest
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill in a listing in the terminal",
		Long: "Starts a wizard session in the terminal. With --draft the session resumes a saved\n" +
			"draft at the step it was left on, or at --step when given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			sess, err := a.sessions.Start(ctx, req)
			if err != nil {
				return err
			}
			status, err := tui.Run(ctx, sess)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch status {
			case schema.SessionStatusCompleted:
				fmt.Fprintf(out, "Listing %s submitted.\n", sess.DraftID)
			case schema.SessionStatusExited:
				fmt.Fprintf(out, "Draft %s saved. Resume with: listwizard fill --draft %s\n", sess.DraftID, sess.DraftID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.DraftID, "draft", "", "draft id to resume")
	cmd.Flags().StringVar(&req.StepID, "step", "", "step id to resume at (legacy ids accepted)")
	return cmd
}
