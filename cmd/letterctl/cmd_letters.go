package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"letterflow/internal/client"
	"letterflow/internal/controller"
	"letterflow/internal/display"
	"letterflow/internal/lifecycle"
)

func (c *cli) listCmd() *cobra.Command {
	var (
		statuses []string
		query    client.ListQuery
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the letters in your queue",
		Long: `List letters. Without flags each role sees its work queue: supervisors
their in-progress letters, the president pending letters, preparers their own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range statuses {
				status, err := lifecycle.ParseStatus(raw)
				if err != nil {
					return err
				}
				query.Statuses = append(query.Statuses, status)
			}
			var page client.LetterPage
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				page, err = cl.ListLetters(cmd.Context(), query)
				return err
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			printLetters(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&query.DecisionTypeID, "type", "", "Filter by decision type id")
	cmd.Flags().StringVarP(&query.Text, "query", "q", "", "Filter by title text")
	cmd.Flags().BoolVar(&query.Mine, "mine", false, "Only letters you declared")
	cmd.Flags().BoolVar(&query.Archived, "archived", false, "Only approved and rejected letters")
	cmd.Flags().StringVar(&query.Sort, "sort", "", "newest, oldest, updated or title")
	cmd.Flags().IntVar(&query.Page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&query.PageSize, "page-size", 0, "Letters per page")
	return cmd
}

func printLetters(w io.Writer, page client.LetterPage) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tAUTHOR\tUPDATED")
	for _, letter := range page.Letters {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			letter.ID,
			letter.Status,
			letter.Title,
			letter.AuthorName,
			letter.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d of %d (page %d)\n", len(page.Letters), page.Total, page.Page)
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a letter and the actions available to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withController(cmd.Context(), args[0], cmd.OutOrStdout(), func(ctrl *controller.Controller) error {
				view := ctrl.View()
				if c.jsonOut {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func printView(w io.Writer, view controller.View) {
	letter := view.Letter
	fmt.Fprintf(w, "%s  %s\n", letter.ID, letter.Title)
	fmt.Fprintf(w, "Status:    %s (%s)\n", letter.Status, display.StatusLabel(letter.Status))
	if letter.DecisionTypeTitle != "" {
		fmt.Fprintf(w, "Type:      %s\n", letter.DecisionTypeTitle)
	}
	fmt.Fprintf(w, "Author:    %s\n", letter.AuthorName)
	fmt.Fprintf(w, "Progress:  %s\n", progress(letter.Status))
	if view.Flags.ShowRejectionDetails {
		fmt.Fprintf(w, "Rejected:  %s\n", letter.ReasonForRejection)
	}
	if view.ArtifactRef != "" {
		fmt.Fprintf(w, "Artifact:  %s\n", view.ArtifactRef)
	}
	if strings.TrimSpace(letter.Rationale) != "" {
		fmt.Fprintf(w, "\n%s\n", letter.Rationale)
	}

	var actions []string
	if view.Flags.ShowReviewActions {
		actions = append(actions, "approve", "reject")
	}
	if view.Flags.ShowSignatureOptions {
		actions = append(actions, "approve --signature genuine|scanned")
	}
	if view.Flags.CanEdit {
		actions = append(actions, "edit")
	}
	if len(actions) > 0 {
		fmt.Fprintf(w, "\nAvailable: %s\n", strings.Join(actions, ", "))
	}
}

func progress(status lifecycle.Status) string {
	names := [3]string{"review", "president", "approved"}
	steps := display.Steps(status)
	parts := make([]string, 0, len(steps))
	for i, step := range steps {
		switch step {
		case display.StepCompleted:
			parts = append(parts, "["+names[i]+" ✓]")
		case display.StepActive:
			parts = append(parts, "["+names[i]+" …]")
		default:
			parts = append(parts, "["+names[i]+"]")
		}
	}
	return strings.Join(parts, " ")
}

func (c *cli) approveCmd() *cobra.Command {
	var signature string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a letter and move it to the next stage",
		Long: `Approve the letter. The president may add --signature to render the
official approval document right after approving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts controller.ApproveOptions
			if cmd.Flags().Changed("signature") {
				option, err := lifecycle.ParseSignatureOption(signature)
				if err != nil {
					return err
				}
				opts.Signature = &option
			}
			out := cmd.OutOrStdout()
			return c.withController(cmd.Context(), args[0], out, func(ctrl *controller.Controller) error {
				result, err := ctrl.Approve(cmd.Context(), opts)
				if errors.Is(err, lifecycle.ErrArtifactGenerationFailed) {
					fmt.Fprintf(out, "%s is now %s, but the approval document failed; run letterctl regenerate %s\n", args[0], ctrl.Letter().Status, args[0])
					return err
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s is now %s (%s)\n", args[0], result.Letter.Status, display.StatusLabel(result.Letter.Status))
				reportArtifact(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "Render the approval document: genuine or scanned")
	return cmd
}

func reportArtifact(cmd *cobra.Command, result controller.ApprovalResult) {
	if result.Filename != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Document: %s\n", result.Filename)
	}
	if result.Warning != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", result.Warning)
	}
}

func (c *cli) rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a letter with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return c.withController(cmd.Context(), args[0], out, func(ctrl *controller.Controller) error {
				ctrl.BeginRejection()
				letter, err := ctrl.ConfirmRejection(cmd.Context(), reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s is now %s: %s\n", letter.ID, letter.Status, letter.ReasonForRejection)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the letter is rejected (required)")
	return cmd
}

func (c *cli) editCmd() *cobra.Command {
	var title, description, rationale string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a letter's title, description or rationale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch lifecycle.ContentPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("rationale") {
				patch.Rationale = &rationale
			}
			out := cmd.OutOrStdout()
			return c.withController(cmd.Context(), args[0], out, func(ctrl *controller.Controller) error {
				letter, err := ctrl.UpdateContent(cmd.Context(), patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated %s: %s\n", letter.ID, letter.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description (HTML)")
	cmd.Flags().StringVar(&rationale, "rationale", "", "New rationale")
	return cmd
}

func (c *cli) regenerateCmd() *cobra.Command {
	var signature string
	cmd := &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Render the approval document of an approved letter again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var option lifecycle.SignatureOption
			if signature != "" {
				parsed, err := lifecycle.ParseSignatureOption(signature)
				if err != nil {
					return err
				}
				option = parsed
			}
			return c.withController(cmd.Context(), args[0], cmd.OutOrStdout(), func(ctrl *controller.Controller) error {
				result, err := ctrl.RegenerateArtifact(cmd.Context(), option)
				if err != nil {
					return err
				}
				reportArtifact(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "genuine or scanned (default: the option chosen at approval)")
	return cmd
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
