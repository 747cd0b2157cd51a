package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-paperwork-must-flow/internal/cli"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rulesets"},
		Short:   "Manage recurring payment detection rule sets",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesImportCmd())
	cmd.AddCommand(rulesDeleteCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the default rule set and your own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sets, err := a.rules.List(cmd.Context(), principalFlag(cmd))
			if err != nil {
				return err
			}
			return cli.RenderRuleSets(cmd.OutOrStdout(), sets)
		},
	}
	addOwnerFlags(cmd)
	return cmd
}

func rulesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [rule-set-id]",
		Short: "Write a rule set as YAML",
		Long:  "Write a rule set as YAML to --output or stdout. Without an id the default rule set is exported.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 && args[0] != "default" {
				id = args[0]
			}
			output, _ := cmd.Flags().GetString("output")

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rs, err := a.rules.Snapshot(cmd.Context(), principalFlag(cmd), id)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return pattern.WriteRuleSetYAML(w, rs)
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "file to write instead of stdout")
	return cmd
}

func rulesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <rules.yaml>",
		Short: "Create or update a rule set from YAML",
		Long: `Create a rule set owned by you from a YAML file. With --update the
file replaces the rules of an existing rule set and bumps its version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, _ := cmd.Flags().GetString("update")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			rs, err := pattern.LoadRuleSetYAML(f)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			principal := principalFlag(cmd)
			if update != "" {
				if update == "default" {
					def, err := a.rules.EnsureDefault(cmd.Context())
					if err != nil {
						return err
					}
					update = def.ID
				}
				rs.ID = update
				saved, err := a.rules.Update(cmd.Context(), principal, rs)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated rule set %s to version %d", saved.ID, saved.Version)))
				return nil
			}

			saved, err := a.rules.Create(cmd.Context(), principal, rs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created rule set %s (%s)", saved.ID, saved.Name)))
			return nil
		},
	}
	addOwnerFlags(cmd)
	cmd.Flags().String("update", "", "id of the rule set to replace ('default' for the default set, admin only)")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <rule-set-id>",
		Short: "Delete one of your rule sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.rules.Delete(cmd.Context(), principalFlag(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted rule set "+args[0]))
			return nil
		},
	}
	addOwnerFlags(cmd)
	return cmd
}
