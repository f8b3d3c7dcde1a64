package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"letterflow/internal/client"
)

func (c *cli) downloadCmd() *cobra.Command {
	var output, downloadAs string
	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a stored approval document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			if output == "" {
				output = filepath.Base(filename)
			}

			var w io.Writer = cmd.OutOrStdout()
			var file *os.File
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				file, w = f, f
			}

			var written int64
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				written, err = cl.DownloadArtifact(cmd.Context(), filename, downloadAs, w)
				return err
			})
			if file != nil {
				if closeErr := file.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					_ = os.Remove(output)
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", output, written)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default: the artifact name)")
	cmd.Flags().StringVar(&downloadAs, "as", "", "Attachment name advertised by the storage backend")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show the content revisions of a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var revisions []client.Revision
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				revisions, err = cl.History(cmd.Context(), args[0], limit)
				return err
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), revisions)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HASH\tDATE\tAUTHOR\tMESSAGE")
			for _, rev := range revisions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rev.Hash, rev.CreatedAt.Format("2006-01-02 15:04"), rev.Author, rev.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum revisions to show (0 for all)")
	return cmd
}

func (c *cli) transitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions <id>",
		Short: "Show who moved a letter between statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []client.TransitionRecord
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				records, err = cl.Transitions(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tFROM\tTO\tACTOR\tDETAIL")
			for _, rec := range records {
				detail := rec.Reason
				if rec.Signature != "" {
					detail = "signature: " + rec.Signature
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s (%s)\t%s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.FromStatus, rec.ToStatus, rec.ActorID, rec.ActorRole, detail)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the archive of approved and rejected letters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			var results []client.SearchResult
			err := c.withClient(cmd.Context(), func(cl *client.Client) error {
				var err error
				results, err = cl.Search(cmd.Context(), text, limit)
				return err
			})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			for _, result := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]  %s\n    %s\n", result.ID, result.Status, result.Title, result.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	return cmd
}
