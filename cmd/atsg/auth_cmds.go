package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/aristath/testscriptgen/internal/api"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				if err := promptCredentials(&username, &password); err != nil {
					return err
				}
			}

			a, err := openApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.auth.Login(cmd.Context(), username, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func promptCredentials(username, password *string) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Username").Value(username),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password),
	)).Run()
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.requireLogin(cmd.Context())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)", user.Username, user.ID)
			if user.Email != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " <%s>", user.Email)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// describe turns API failures into their user-facing message, adding
// validation details when the backend sent them.
func describe(err error) error {
	apiErr, ok := api.AsError(err)
	if !ok {
		return err
	}
	msg := apiErr.Message
	for _, v := range apiErr.ValidationErrors {
		msg += fmt.Sprintf("\n  %v: %s", v.Loc, v.Msg)
	}
	return errors.New(msg)
}
