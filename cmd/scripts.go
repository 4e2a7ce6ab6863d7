// File: cmd/scripts.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/observability"
	"github.com/xkilldash9x/scriptfill/internal/scripts"
)

// previewLength is how many runes of content the table shows.
const previewLength = 40

func newScriptsCmd(d *deps) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "Manage stored scripts",
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", formatTable, "output format (json, table)")

	// withRepo opens the configured store around fn.
	withRepo := func(cmd *cobra.Command, fn func(repo scripts.Repository) error) error {
		if err := checkFormat(format); err != nil {
			return err
		}
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		repo, release, err := d.openRepo(cmd.Context(), cfg, observability.GetLogger())
		if err != nil {
			return fmt.Errorf("failed to open script store: %w", err)
		}
		defer release()
		return fn(repo)
	}
	render := func(w io.Writer, list []schemas.Script) error {
		if format == formatJSON {
			if list == nil {
				list = []schemas.Script{}
			}
			return writeJSON(w, list)
		}
		return writeScriptTable(w, list)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(repo scripts.Repository) error {
				list, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), list)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Find scripts by title, note or content, ignoring case and accents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(repo scripts.Repository) error {
				list, err := repo.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), list)
			})
		},
	})

	var (
		add         schemas.Script
		contentFile string
	)
	addCmd := &cobra.Command{
		Use:   "add --title TITLE (--content TEXT | --content-file PATH)",
		Short: "Create or replace a script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				data, err := readInput(cmd, contentFile)
				if err != nil {
					return err
				}
				add.Content = string(data)
			}
			return withRepo(cmd, func(repo scripts.Repository) error {
				stored, err := repo.Put(cmd.Context(), add)
				if err != nil {
					return err
				}
				if format == formatJSON {
					return writeJSON(cmd.OutOrStdout(), stored)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved script %s\n", stored.ID)
				return nil
			})
		},
	}
	af := addCmd.Flags()
	af.StringVar(&add.ID, "id", "", "ID of the script to replace")
	af.StringVar(&add.Title, "title", "", "script title")
	af.StringVar(&add.Content, "content", "", "script content")
	af.StringVar(&contentFile, "content-file", "", "read the content from a file (- for stdin)")
	af.StringVar(&add.Note, "note", "", "free-form note, searchable")
	af.StringVar(&add.Group, "group", "", "group the script is listed under")
	addCmd.MarkFlagsMutuallyExclusive("content", "content-file")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete scripts",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, func(repo scripts.Repository) error {
				for _, id := range args {
					if err := repo.Delete(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted script %s\n", id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Store every script of a YAML or JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			batch, err := scripts.DecodeBatch(data)
			if err != nil {
				return err
			}
			return withRepo(cmd, func(repo scripts.Repository) error {
				n, err := repo.Import(cmd.Context(), batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d scripts\n", n)
				return nil
			})
		},
	})
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeScriptTable(w io.Writer, list []schemas.Script) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tTITLE\tCONTENT\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Group, s.Title, preview(s.Content), s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// preview flattens content to one line and shortens it.
func preview(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= previewLength {
		return flat
	}
	return string(runes[:previewLength-1]) + "…"
}
