package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFoldersCommand(wiring commandWiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "folders",
		Aliases: []string{"folder"},
		Short:   "List, create and delete folders",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List folders",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(wiring, func(rt *runtime) error {
					if err := rt.loadNotes(cmd.Context()); err != nil {
						return err
					}
					printFolders(cmd.OutOrStdout(), rt.notes.ListFolders())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a folder",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(wiring, func(rt *runtime) error {
					if err := rt.loadNotes(cmd.Context()); err != nil {
						return err
					}
					folder, err := rt.notes.CreateFolder(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "created folder %s (%s)\n", folder.Name, folder.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a folder and all its notes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(wiring, func(rt *runtime) error {
					if err := rt.loadNotes(cmd.Context()); err != nil {
						return err
					}
					folder, err := rt.notes.GetFolder(args[0])
					if err != nil {
						return err
					}
					if err := rt.notes.DeleteFolder(cmd.Context(), folder.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted folder %s and %d notes\n", folder.Name, folder.NoteCount)
					return nil
				})
			},
		},
	)
	return cmd
}
