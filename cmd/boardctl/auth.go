package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/usecase"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
)

func loginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in and remember the token locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			var identity domain.Identity
			err := a.client.call(http.MethodPost, "/api/v1/auth/login", false, transport.LoginRequest{
				Identifier: args[0],
				Password:   password,
			}, &identity)
			if err != nil {
				return err
			}
			if err := a.store.SetString(usecase.KeyAuthToken, identity.Token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", identity.DisplayName, identity.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the local token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.client.call(http.MethodPost, "/api/v1/auth/logout", true, nil, nil)
			var apiErr *apiError
			switch {
			case errors.Is(err, errNotSignedIn):
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
				// session already gone server side
			case err != nil:
				return err
			}
			if err := a.store.Remove(usecase.KeyAuthToken); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p profileUC.Profile
			if err := a.client.call(http.MethodGet, "/api/v1/profile", true, nil, &p); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.DisplayName, p.Initials)
			fmt.Fprintf(out, "  id:       %s\n", p.UserID)
			fmt.Fprintf(out, "  email:    %s\n", p.Email)
			if p.Username != "" {
				fmt.Fprintf(out, "  username: %s\n", p.Username)
			}
			fmt.Fprintf(out, "  profile:  %d%% complete\n", p.Completion)
			return nil
		},
	}
}
