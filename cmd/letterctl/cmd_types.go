package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"letterflow/internal/client"
)

func (c *cli) typesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage decision types",
	}
	cmd.AddCommand(c.typesListCmd(), c.typesSaveCmd(false), c.typesSaveCmd(true), c.typesDeleteCmd())
	return cmd
}

func (c *cli) typesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List decision types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var items []client.DecisionType
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				items, err = cl.DecisionTypes(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSECTOR\tSUPERVISOR\tPRESIDENT")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", item.ID, item.Title, item.Sector, item.SupervisorID, item.IsPresidentDecision)
			}
			return tw.Flush()
		},
	}
}

// typesSaveCmd builds "add" or, with update set, "update <id>".
func (c *cli) typesSaveCmd(update bool) *cobra.Command {
	var title, sector, supervisor string
	var president bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a decision type",
		Args:  cobra.NoArgs,
	}
	if update {
		cmd.Use = "update <id>"
		cmd.Short = "Change a decision type"
		cmd.Args = cobra.ExactArgs(1)
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var change client.DecisionTypeChange
		flags := cmd.Flags()
		if flags.Changed("title") {
			change.Title = &title
		}
		if flags.Changed("sector") {
			change.Sector = &sector
		}
		if flags.Changed("supervisor") {
			change.SupervisorID = &supervisor
		}
		if flags.Changed("president") {
			change.IsPresidentDecision = &president
		}

		var item client.DecisionType
		err := c.withClient(cmd.Context(), func(cl *client.Client) error {
			var err error
			if update {
				item, err = cl.UpdateDecisionType(cmd.Context(), args[0], change)
			} else {
				item, err = cl.CreateDecisionType(cmd.Context(), change)
			}
			return err
		})
		if err != nil {
			return err
		}
		if c.jsonOut {
			return writeJSON(cmd.OutOrStdout(), item)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %s)\n", item.ID, item.Title, item.Sector)
		return nil
	}
	cmd.Flags().StringVar(&title, "title", "", "Decision type title")
	cmd.Flags().StringVar(&sector, "sector", "", "Sector the type belongs to")
	cmd.Flags().StringVar(&supervisor, "supervisor", "", "User id of the reviewing supervisor, empty to clear")
	cmd.Flags().BoolVar(&president, "president", false, "Decision is issued by the president")
	return cmd
}

func (c *cli) typesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a decision type no letter uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				return cl.DeleteDecisionType(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
