package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moasq/submint/internal/secrets"
	"github.com/moasq/submint/internal/supabase"
	"github.com/moasq/submint/internal/terminal"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a SubMint account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		accts, err := a.accounts()
		if err != nil {
			return err
		}
		name, err := terminal.ReadLine("Full name")
		if err != nil {
			return err
		}
		email, password, err := promptCredentials()
		if err != nil {
			return err
		}

		session, err := accts.SignUp(cmd.Context(), email, password, name)
		if err != nil {
			return err
		}
		if session.AccessToken == "" {
			terminal.Success(fmt.Sprintf("Account created for %s", session.User.Email))
			terminal.Info("Confirm your email, then run `submint login`.")
			return nil
		}
		return finishSignIn(a, session)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to SubMint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		accts, err := a.accounts()
		if err != nil {
			return err
		}
		email, password, err := promptCredentials()
		if err != nil {
			return err
		}
		session, err := accts.SignIn(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		return finishSignIn(a, session)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if err := a.secrets().Delete(secrets.KeySession); err != nil {
			return err
		}
		terminal.Success("Signed out")
		return nil
	},
}

func promptCredentials() (email, password string, err error) {
	if email, err = terminal.ReadLine("Email"); err != nil {
		return "", "", err
	}
	if password, err = terminal.ReadSecret("Password"); err != nil {
		return "", "", err
	}
	return email, password, nil
}

func finishSignIn(a *app, session *supabase.Session) error {
	if err := saveSession(a.secrets(), session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	terminal.Success(fmt.Sprintf("Signed in as %s", session.User.Email))
	terminal.Detail("User ID", session.User.ID)
	return nil
}
