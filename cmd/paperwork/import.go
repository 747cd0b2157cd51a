package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/cli"
	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <statement.pdf>...",
		Short: "Import bank statement PDFs",
		Long: `Upload one or more bank statement PDFs, extract their transactions and
detect recurring payments. Each file becomes an import session whose
suggestions can be reviewed with 'paperwork sessions confirm'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	addOwnerFlags(cmd)
	cmd.Flags().String("rule-set", "", "detection rule set id (default rule set when empty)")
	cmd.Flags().Bool("review", false, "review suggestions interactively after processing")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	principal := principalFlag(cmd)
	ruleSetID, _ := cmd.Flags().GetString("rule-set")
	review, _ := cmd.Flags().GetBool("review")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	interrupts := cli.NewInterruptHandler(cmd.OutOrStdout(), "Unfinished imports resume on the next 'paperwork serve'")
	ctx, stop := interrupts.HandleInterrupts(ctx)
	defer stop()

	a.imports.Start(ctx)

	var failed int
	for _, path := range args {
		session, err := importFile(ctx, cmd, a, principal, path, ruleSetID)
		if err != nil {
			if interrupts.WasInterrupted() {
				return err
			}
			failed++
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
			continue
		}
		if err := cli.RenderSession(cmd.OutOrStdout(), session); err != nil {
			return err
		}
		if review && session.Status == model.SessionCompleted {
			if err := reviewSession(ctx, cmd, a, principal, session); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed to import", failed, len(args))
	}
	return nil
}

func importFile(ctx context.Context, cmd *cobra.Command, a *app, principal model.Principal, path, ruleSetID string) (*model.ImportSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}

	session, err := a.imports.UploadStatement(ctx, principal, data, filepath.Base(path), importer.UploadOptions{RuleSetID: ruleSetID})
	var dup *common.DuplicateUploadError
	if errors.As(err, &dup) {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%s was already imported as session %s", filepath.Base(path), dup.ExistingSessionID)))
		return a.imports.GetSession(ctx, principal, dup.ExistingSessionID)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("Statement uploaded", "session_id", session.ID, "file", path)

	_, err = cli.WaitForSession(ctx, cmd.ErrOrStderr(), func(ctx context.Context) (*importer.StatusView, error) {
		return a.imports.GetStatus(ctx, principal, session.ID)
	}, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return a.imports.GetSession(ctx, principal, session.ID)
}

func reviewSession(ctx context.Context, cmd *cobra.Command, a *app, principal model.Principal, session *model.ImportSession) error {
	prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	confirmations, err := prompter.ReviewSuggestions(ctx, session.RecurringPayments)
	if err != nil {
		return err
	}
	if len(confirmations) == 0 {
		return nil
	}
	result, err := a.imports.ConfirmSuggestions(ctx, principal, session.ID, importer.ConfirmRequest{Confirmations: confirmations})
	if err != nil {
		return err
	}
	return cli.RenderConfirmResult(cmd.OutOrStdout(), result)
}
