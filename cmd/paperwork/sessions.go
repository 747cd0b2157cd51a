package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/cli"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and confirm import sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsConfirmCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.imports.ListSessions(cmd.Context(), principalFlag(cmd), importer.ListOptions{
				Status: model.SessionStatus(status),
				Page:   page,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			return cli.RenderSessions(cmd.OutOrStdout(), result)
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().String("status", "", "only sessions with this status (processing, completed, failed)")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("limit", importer.DefaultPageLimit, "sessions per page")
	return cmd
}

func sessionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.imports.GetSession(cmd.Context(), principalFlag(cmd), args[0])
			if err != nil {
				return err
			}
			return cli.RenderSession(cmd.OutOrStdout(), session)
		},
	}
	addOwnerFlags(cmd)
	return cmd
}

func sessionsConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <session-id>",
		Short: "Accept or reject recurring payment suggestions",
		Long: `Accept or reject the suggestions of a completed session. Without
--all, --accept or --reject the suggestions are reviewed interactively.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfirm,
	}
	addOwnerFlags(cmd)
	cmd.Flags().Bool("all", false, "accept every pending suggestion")
	cmd.Flags().IntSlice("accept", nil, "suggestion indexes to accept")
	cmd.Flags().IntSlice("reject", nil, "suggestion indexes to reject")
	return cmd
}

func runConfirm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	principal := principalFlag(cmd)
	all, _ := cmd.Flags().GetBool("all")
	accept, _ := cmd.Flags().GetIntSlice("accept")
	reject, _ := cmd.Flags().GetIntSlice("reject")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var req importer.ConfirmRequest
	switch {
	case all:
		req.BulkAction = importer.BulkAcceptAll
	case len(accept) > 0 || len(reject) > 0:
		for _, i := range accept {
			req.Confirmations = append(req.Confirmations, importer.Confirmation{SuggestionIndex: i, Action: importer.ActionAccept})
		}
		for _, i := range reject {
			req.Confirmations = append(req.Confirmations, importer.Confirmation{SuggestionIndex: i, Action: importer.ActionReject})
		}
	default:
		session, err := a.imports.GetSession(ctx, principal, args[0])
		if err != nil {
			return err
		}
		return reviewSession(ctx, cmd, a, principal, session)
	}

	result, err := a.imports.ConfirmSuggestions(ctx, principal, args[0], req)
	if err != nil {
		return err
	}
	return cli.RenderConfirmResult(cmd.OutOrStdout(), result)
}

func sessionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session that created no records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.imports.DeleteSession(cmd.Context(), principalFlag(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted session "+args[0]))
			return nil
		},
	}
	addOwnerFlags(cmd)
	return cmd
}
