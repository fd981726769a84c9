package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartnotes/internal/types"
)

func newLoginCommand(wiring commandWiring) *cobra.Command {
	var email, password string
	var remember bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if email == "" {
					email = rt.session.RememberedEmail()
				}
				secret, err := readSecret(cmd, password, "password")
				if err != nil {
					return err
				}
				current, err := rt.session.Login(cmd.Context(), types.Credentials{
					Email:    email,
					Password: secret,
					Remember: remember,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", displayName(current.User), current.User.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (defaults to the remembered one)")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "remember the email for the next login")
	return cmd
}

func newRegisterCommand(wiring commandWiring) *cobra.Command {
	var reg types.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				secret, err := readSecret(cmd, reg.Password, "password")
				if err != nil {
					return err
				}
				reg.Password = secret
				if reg.Confirm == "" {
					reg.Confirm = secret
				}
				user, err := rt.session.Register(cmd.Context(), reg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s <%s>; run 'smartnotes login' to sign in\n", displayName(user), user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (read from stdin when omitted)")
	cmd.Flags().StringVar(&reg.Confirm, "confirm", "", "password confirmation (defaults to --password)")
	return cmd
}

func newLogoutCommand(wiring commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				_, _ = rt.session.Restore()
				rt.session.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func newWhoAmICommand(wiring commandWiring) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.requireSession(); err != nil {
					return err
				}
				current, _ := rt.session.Current()
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s backend)\n", displayName(current.User), current.User.Email, rt.cfg.BackendMode())
				return nil
			})
		},
	}
}

func displayName(user types.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
