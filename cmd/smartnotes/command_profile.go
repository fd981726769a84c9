package main

import (
	"github.com/spf13/cobra"

	"smartnotes/internal/types"
)

func newProfileCommand(wiring commandWiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the account profile",
	}
	cmd.AddCommand(newProfileShowCommand(wiring), newProfileUpdateCommand(wiring))
	return cmd
}

func newProfileShowCommand(wiring commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Fetch the profile from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.requireSession(); err != nil {
					return err
				}
				user, err := rt.session.Profile(cmd.Context())
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
}

func newProfileUpdateCommand(wiring commandWiring) *cobra.Command {
	var update types.ProfileUpdate
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change name, email or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.requireSession(); err != nil {
					return err
				}
				current, _ := rt.session.Current()
				if !cmd.Flags().Changed("name") {
					update.Name = current.User.Name
				}
				if !cmd.Flags().Changed("email") {
					update.Email = current.User.Email
				}
				if update.Confirm == "" {
					update.Confirm = update.Password
				}
				user, err := rt.session.UpdateProfile(cmd.Context(), update)
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), user)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&update.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&update.Email, "email", "", "new email")
	cmd.Flags().StringVar(&update.Password, "password", "", "new password")
	cmd.Flags().StringVar(&update.Confirm, "confirm", "", "new password confirmation (defaults to --password)")
	return cmd
}
