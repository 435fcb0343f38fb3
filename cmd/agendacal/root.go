package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"agendaaberta/internal/api"
	"agendaaberta/internal/config"
	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/session"
)

// app is the state shared by every subcommand, built once the config has
// been loaded.
type app struct {
	configPath string
	debug      bool

	cfg  *config.Config
	sess *session.Session
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "agendaaberta", "config.yaml")
	}
	return "config.yaml"
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "agendacal",
		Short: "Office hours client for Agenda Aberta",
		Long: `agendacal manages your registered office hours ("horários") and shows
them as a calendar: the previous, current and next month around a date.
It can also serve the calendar over HTTP, export it as ICS and search
the public schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath(), "Path to config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newRegisterCmd(a),
		newDeleteAccountCmd(a),
		newDisciplinasCmd(a),
		newHorariosCmd(a),
		newSearchCmd(a),
		newAgendaCmd(a),
		newExportCmd(a),
		newShowICSCmd(a),
		newServeCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

// setup loads config, configures logging and restores the session.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	a.cfg = cfg

	level := appLog.ParseLevel(cfg.LogLevel)
	if a.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	client, err := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.Timeout()))
	if err != nil {
		return err
	}
	store := session.NewFileStore(config.ResolvePath(a.configPath, cfg.TokenPath))
	a.sess = session.New(client, store)

	appLog.Debug("effective config",
		"api_base_url", cfg.APIBaseURL,
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"token_path", store.Path(),
	)

	if err := a.sess.Init(ctx); err != nil {
		// Offline: keep going, commands that need the API will report it.
		appLog.Error("could not restore session", err)
	}
	return nil
}

// requireLogin fails with a friendly message when no user is logged in.
func (a *app) requireLogin() error {
	if _, err := a.sess.RequireUser(); err != nil {
		return fmt.Errorf("not logged in; run `agendacal login` first: %w", err)
	}
	return nil
}

// printErr renders err for a terminal user. API failures collapse to their
// user message plus any field errors; local errors print as is.
func printErr(w io.Writer, err error) {
	msg := err.Error()
	var (
		vErr *api.ValidationError
		sErr *api.StatusError
	)
	if errors.As(err, &vErr) || errors.As(err, &sErr) || api.IsAuth(err) || api.IsNetwork(err) {
		msg = api.UserMessage(err)
	}
	fmt.Fprintln(w, "error:", msg)

	fields := api.FieldErrors(err)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
	appLog.Debug("command failed", "error", err.Error())
}
