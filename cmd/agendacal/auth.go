package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agendaaberta/internal/api"
	"agendaaberta/internal/model"
	"agendaaberta/internal/validate"
)

// prompt reads one line from in after printing label to out.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(in, cmd.OutOrStdout(), "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(in, cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			user, err := a.sess.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.DisplayName(), user.Kind)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, ok := a.sess.User()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nusername: %s\ntipo: %s\n",
				user.DisplayName(), user.Email, user.Username, user.Kind)
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg api.Registration
	var kind string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (institutional e-mail required)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg.Kind = model.UserKind(strings.ToLower(strings.TrimSpace(kind)))
			reg.Email = strings.TrimSpace(reg.Email)
			if err := validate.Registration(reg); err != nil {
				return err
			}
			user, err := a.sess.Client().Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created; log in with `agendacal login -u %s`\n",
				user.Username, user.Username)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Username, "username", "", "Username (no spaces)")
	f.StringVar(&reg.FirstName, "first-name", "", "First name")
	f.StringVar(&reg.LastName, "last-name", "", "Last name")
	f.StringVar(&reg.Email, "email", "", "Institutional e-mail")
	f.StringVar(&reg.Password, "password", "", "Password")
	f.StringVar(&kind, "tipo", string(model.KindStudent), "Account type: aluno, professor or monitor")
	return cmd
}

func newDeleteAccountCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to delete the account without --yes")
			}
			if err := a.sess.Client().DeleteAccount(cmd.Context()); err != nil {
				return err
			}
			if err := a.sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
