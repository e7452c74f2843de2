package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <draft.yaml>",
		Short: "Check a draft entry without posting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			draft, err := ws.loadDraft(args[0])
			if err != nil {
				return err
			}

			errs := ws.engine.Validate(cmd.Context(), draft)
			if len(errs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Draft is valid: %d lines, %s debit / %s credit\n",
					len(draft.Lines), draft.TotalDebit.StringFixed(2), draft.TotalCredit.StringFixed(2))
				return nil
			}

			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", e)
			}
			return fmt.Errorf("draft failed %d validation check(s)", len(errs))
		},
	}
	return cmd
}

func newPostCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "post <draft.yaml>",
		Short: "Validate and post a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			draft, err := ws.loadDraft(args[0])
			if err != nil {
				return err
			}

			posted, err := ws.engine.Post(cmd.Context(), draft, actor)
			if err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s: %s (%s)\n",
				posted.EntryNo, posted.Description, posted.TotalDebit.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "who is posting")
	return cmd
}

func newVoidCommand() *cobra.Command {
	var actor, reason string

	cmd := &cobra.Command{
		Use:   "void <entry-no>",
		Short: "Void a posted entry with a reversing transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(workspaceDir(cmd))
			if err != nil {
				return err
			}

			orig, err := ws.findByEntryNo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			reversal, err := ws.engine.Void(cmd.Context(), ws.tenant, orig.ID, reason, actor)
			if err != nil {
				return err
			}
			if err := ws.save(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Voided %s; reversal posted as %s\n", orig.EntryNo, reversal.EntryNo)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "cli", "who is voiding")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the void (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
