package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agendaaberta/internal/api"
	"agendaaberta/internal/model"
	"agendaaberta/internal/search"
	"agendaaberta/internal/validate"
)

func newDisciplinasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disciplinas",
		Short: "List disciplines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.sess.Client().Disciplines(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tNAME")
			for _, d := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", d.ID, d.Code, d.Name)
			}
			return tw.Flush()
		},
	}
}

func newHorariosCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "horarios",
		Aliases: []string{"rules"},
		Short:   "Manage your weekly office hours",
	}
	cmd.AddCommand(
		newHorariosListCmd(a),
		newHorariosAddCmd(a),
		newHorariosEditCmd(a),
		newHorariosDeleteCmd(a),
	)
	return cmd
}

func newHorariosListCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your rules, paginated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			rules, err := a.sess.Client().Rules(cmd.Context())
			if err != nil {
				return err
			}
			p := search.Paginate(rules, page, a.cfg.PageSize)
			if err := printRules(cmd.OutOrStdout(), p.Items); err != nil {
				return err
			}
			printPageFooter(cmd.OutOrStdout(), p.Number, p.TotalPages, p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	return cmd
}

func printRules(w io.Writer, rules []model.RecurrenceRule) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDISCIPLINE\tDAY\tSTART\tEND\tLOCATION")
	for _, r := range rules {
		day := "?"
		if r.DayOfWeek.Valid() {
			day = r.DayOfWeek.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Label, day, r.Start, r.End, r.Location)
	}
	return tw.Flush()
}

func printPageFooter(w io.Writer, number, totalPages, total int) {
	if totalPages == 0 {
		fmt.Fprintln(w, "(no results)")
		return
	}
	fmt.Fprintf(w, "page %d of %d (%d total)\n", number, totalPages, total)
}

// ruleFlags binds the rule fields shared by add and edit.
type ruleFlags struct {
	discipline int64
	day        string
	start      string
	end        string
	location   string
}

func (f *ruleFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Int64Var(&f.discipline, "disciplina", 0, "Discipline ID (see `agendacal disciplinas`)")
	fl.StringVar(&f.day, "dia", "", "Weekday, e.g. segunda or Segunda-feira")
	fl.StringVar(&f.start, "inicio", "", "Start time HH:MM")
	fl.StringVar(&f.end, "fim", "", "End time HH:MM")
	fl.StringVar(&f.location, "local", "", "Location")
}

// patch converts the flags the user actually set into a RulePatch.
// Unparsable values become invalid markers so validation reports them per
// field.
func (f *ruleFlags) patch(cmd *cobra.Command) api.RulePatch {
	var p api.RulePatch
	changed := cmd.Flags().Changed
	if changed("disciplina") {
		p.DisciplineID = &f.discipline
	}
	if changed("dia") {
		d, err := model.ParseWeekday(f.day)
		if err != nil {
			d = model.InvalidWeekday
		}
		p.DayOfWeek = &d
	}
	if changed("inicio") {
		t := parseTimeOrInvalid(f.start)
		p.Start = &t
	}
	if changed("fim") {
		t := parseTimeOrInvalid(f.end)
		p.End = &t
	}
	if changed("local") {
		p.Location = &f.location
	}
	return p
}

func parseTimeOrInvalid(s string) model.TimeOfDay {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		return model.InvalidTime
	}
	return t
}

func newHorariosAddCmd(a *app) *cobra.Command {
	var f ruleFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new weekly rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			in := validate.ApplyPatch(model.RecurrenceRule{
				DayOfWeek: model.InvalidWeekday,
				Start:     model.InvalidTime,
				End:       model.InvalidTime,
			}, f.patch(cmd))
			if err := validate.Rule(in); err != nil {
				return err
			}

			rule, err := a.sess.Client().CreateRule(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d: %s %s-%s at %s\n",
				rule.ID, rule.DayOfWeek, rule.Start, rule.End, rule.Location)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newHorariosEditCmd(a *app) *cobra.Command {
	var f ruleFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of an existing rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p := f.patch(cmd)
			if p.Empty() {
				return errors.New("nothing to change; pass at least one of --disciplina --dia --inicio --fim --local")
			}

			cur, err := findRule(cmd.Context(), a, id)
			if err != nil {
				return err
			}
			if err := validate.Rule(validate.ApplyPatch(cur, p)); err != nil {
				return err
			}

			rule, err := a.sess.Client().UpdateRule(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated rule %d: %s %s-%s at %s\n",
				rule.ID, rule.DayOfWeek, rule.Start, rule.End, rule.Location)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newHorariosDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.sess.Client().DeleteRule(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", s)
	}
	return id, nil
}

func findRule(ctx context.Context, a *app, id int64) (model.RecurrenceRule, error) {
	rules, err := a.sess.Client().Rules(ctx)
	if err != nil {
		return model.RecurrenceRule{}, err
	}
	for _, r := range rules {
		if r.ID == id {
			return r, nil
		}
	}
	return model.RecurrenceRule{}, fmt.Errorf("rule %d not found", id)
}
