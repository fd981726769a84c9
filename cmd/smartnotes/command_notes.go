package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"smartnotes/internal/apperr"
	"smartnotes/internal/config"
	"smartnotes/internal/notes"
	"smartnotes/internal/types"
)

func newNotesCommand(wiring commandWiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note"},
		Short:   "Work with notes",
	}
	cmd.AddCommand(
		newNotesListCommand(wiring),
		newNotesShowCommand(wiring),
		newNotesCreateCommand(wiring),
		newNotesUpdateCommand(wiring),
		newNotesDeleteCommand(wiring),
		newNotesExportCommand(wiring),
	)
	return cmd
}

func newNotesListCommand(wiring commandWiring) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "list [folder-id]",
		Short: "List the notes of a folder, or the most recent notes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				if len(args) == 0 {
					printNotes(cmd.OutOrStdout(), rt.notes.RecentNotes(recent))
					return nil
				}
				list, err := rt.notes.ListNotes(args[0])
				if err != nil {
					return err
				}
				printNotes(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent notes to list without a folder")
	return cmd
}

func newNotesShowCommand(wiring commandWiring) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <note-id>",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				note, err := rt.notes.GetNote(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n\n", note.Title)
				if raw {
					fmt.Fprintln(out, note.Content)
				} else {
					fmt.Fprintln(out, notes.PlainText(note.Content))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print content without stripping markup")
	return cmd
}

func newNotesCreateCommand(wiring commandWiring) *cobra.Command {
	var title, text, file string
	cmd := &cobra.Command{
		Use:   "create <folder-id>",
		Short: "Create a note in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				body, _, err := readText(cmd, text, file)
				if err != nil {
					return err
				}
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				note, err := rt.notes.CreateNote(cmd.Context(), args[0], title, body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created note %s (%s)\n", note.Title, note.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "note title")
	cmd.Flags().StringVar(&text, "text", "", "original text")
	cmd.Flags().StringVar(&file, "file", "", "read the original text from a file ('-' for stdin)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newNotesUpdateCommand(wiring commandWiring) *cobra.Command {
	var title, content, file string
	cmd := &cobra.Command{
		Use:   "update <note-id>",
		Short: "Change a note's title or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				var patch types.NotePatch
				if cmd.Flags().Changed("title") {
					patch.Title = types.StringPtr(title)
				}
				body, ok, err := readText(cmd, content, file)
				if err != nil {
					return err
				}
				if ok || cmd.Flags().Changed("content") {
					patch.Content = types.StringPtr(body)
				}
				if patch.Empty() {
					return apperr.Validation("update note", "", "nothing to update; pass --title, --content or --file")
				}
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				note, err := rt.notes.UpdateNote(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated note %s (%s)\n", note.Title, note.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&file, "file", "", "read the new content from a file ('-' for stdin)")
	return cmd
}

func newNotesDeleteCommand(wiring commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <note-id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				if err := rt.notes.DeleteNote(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted note", args[0])
				return nil
			})
		},
	}
}

func newNotesExportCommand(wiring commandWiring) *cobra.Command {
	var format, outDir string
	var stdout bool
	cmd := &cobra.Command{
		Use:   "export <note-id>",
		Short: "Export a note as text or markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				parsed, err := notes.ParseFormat(format)
				if err != nil {
					return err
				}
				if err := rt.loadNotes(cmd.Context()); err != nil {
					return err
				}
				name, data, err := rt.notes.ExportNote(args[0], parsed)
				if err != nil {
					return err
				}
				if stdout {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				dir := outDir
				if dir == "" {
					if dir, err = config.ExportDir(); err != nil {
						return err
					}
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				path := filepath.Join(dir, name)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "md", "export format: txt or md")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to the data dir's exports/)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of a file")
	return cmd
}
