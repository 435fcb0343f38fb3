package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agendaaberta/internal/agenda"
	"agendaaberta/internal/ics"
	"agendaaberta/internal/model"
)

// referenceDate parses --date in the display timezone; empty means today.
func (a *app) referenceDate(raw string) (time.Time, error) {
	loc := a.cfg.Location()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().In(loc), nil
	}
	ref, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return ref, nil
}

func (a *app) loadAgenda(ctx context.Context, raw string) (*agenda.Snapshot, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	ref, err := a.referenceDate(raw)
	if err != nil {
		return nil, err
	}
	snap, err := agenda.NewLoader(a.sess, a.cfg.Location()).Load(ctx, ref)
	if err != nil && !errors.Is(err, agenda.ErrStale) {
		return nil, err
	}
	return snap, nil
}

func newAgendaCmd(a *app) *cobra.Command {
	var (
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Show your occurrences for the previous, current and next month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.loadAgenda(cmd.Context(), date)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap.Occurrences)
			}
			printAgenda(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print occurrences as JSON")
	return cmd
}

// printAgenda lists occurrences grouped by day, with a month heading each
// time the month changes.
func printAgenda(w io.Writer, snap *agenda.Snapshot) {
	fmt.Fprintf(w, "%s to %s, %d rules, %d occurrences\n",
		snap.WindowStart.Format(time.DateOnly),
		snap.WindowEnd.AddDate(0, 0, -1).Format(time.DateOnly),
		len(snap.Rules), len(snap.Occurrences))

	occs := append([]model.CalendarOccurrence(nil), snap.Occurrences...)
	sort.SliceStable(occs, func(i, j int) bool { return occs[i].Start.Before(occs[j].Start) })

	var month, day string
	for _, occ := range occs {
		start := occ.Start.In(snap.Reference.Location())
		if m := start.Format("2006-01"); m != month {
			month = m
			fmt.Fprintf(w, "\n== %s ==\n", m)
		}
		if d := start.Format(time.DateOnly); d != day {
			day = d
			fmt.Fprintf(w, "%s %s\n", d, start.Weekday())
		}
		fmt.Fprintf(w, "  %s-%s  %s", start.Format("15:04"),
			occ.End.In(snap.Reference.Location()).Format("15:04"), occ.Title)
		if occ.Location != "" {
			fmt.Fprintf(w, " @ %s", occ.Location)
		}
		fmt.Fprintln(w)
	}
}

func newExportCmd(a *app) *cobra.Command {
	var date, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the three-month window as an ICS calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.loadAgenda(cmd.Context(), date)
			if err != nil {
				return err
			}
			opts := ics.ExportOptions{
				Name:     a.cfg.CalendarName,
				Timezone: a.cfg.Location().String(),
				Stamp:    snap.LoadedAt,
			}

			path := output
			if !cmd.Flags().Changed("output") {
				path = a.cfg.ICSPath
			}
			if path == "" || path == "-" {
				payload, err := ics.Export(snap.Occurrences, opts)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			if err := ics.WriteFile(path, snap.Occurrences, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d events to %s\n", len(snap.Occurrences), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default ics_path from config, else stdout)")
	return cmd
}

func newShowICSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-ics FILE",
		Short: "List the events of an exported ICS file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			feed, err := ics.Parse(body)
			if err != nil {
				return err
			}
			loc := a.cfg.Location()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d events\n", feed.Name, len(feed.Events))
			for _, ev := range feed.Events {
				fmt.Fprintf(out, "%s %s-%s  %s", ev.Start.In(loc).Format("2006-01-02 Mon"),
					ev.Start.In(loc).Format("15:04"), ev.End.In(loc).Format("15:04"), ev.Summary)
				if ev.Location != "" {
					fmt.Fprintf(out, " @ %s", ev.Location)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
