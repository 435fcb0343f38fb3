package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"agendaaberta/internal/api"
	"agendaaberta/internal/model"
	"agendaaberta/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		page        int
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "search [TERM]",
		Short: "Search the public office hours by professor or discipline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return a.searchInteractive(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
				return errors.New("search term is required (or use -i)")
			}

			slots, err := a.sess.Client().SearchPublic(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			p := search.Paginate(slots, page, a.cfg.PageSize)
			if err := printSlots(cmd.OutOrStdout(), p.Items); err != nil {
				return err
			}
			printPageFooter(cmd.OutOrStdout(), p.Number, p.TotalPages, p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read terms from stdin, one per line, and search as you type")
	return cmd
}

// searchInteractive feeds each input line to a debounced Searcher and prints
// the first page of whatever result is current. At EOF it waits for the
// last term to resolve.
func (a *app) searchInteractive(in io.Reader, out io.Writer) error {
	results := make(chan search.Result, 1)
	s := search.NewSearcher(a.sess.Client(), a.cfg.SearchDebounce(), a.cfg.Timeout(), func(r search.Result) {
		select {
		case results <- r:
		default:
			// Drop the older unread result in favour of r.
			select {
			case <-results:
			default:
			}
			results <- r
		}
	})
	defer s.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		readErr <- sc.Err()
		close(lines)
	}()

	fmt.Fprintln(out, "Type a term and press enter; empty line clears, EOF exits.")
	var last string
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return err
				}
				a.awaitFinal(results, strings.TrimSpace(last), out)
				return nil
			}
			last = line
			s.Query(line)
		case r := <-results:
			a.printResult(out, r)
		}
	}
}

// awaitFinal prints results until the one for term arrives or the search
// would have timed out.
func (a *app) awaitFinal(results <-chan search.Result, term string, out io.Writer) {
	if term == "" {
		return
	}
	deadline := time.NewTimer(a.cfg.SearchDebounce() + a.cfg.Timeout())
	defer deadline.Stop()
	for {
		select {
		case r := <-results:
			a.printResult(out, r)
			if r.Term == term {
				return
			}
		case <-deadline.C:
			return
		}
	}
}

func (a *app) printResult(out io.Writer, r search.Result) {
	if r.Term == "" {
		fmt.Fprintln(out, "(cleared)")
		return
	}
	if r.Err != nil {
		fmt.Fprintf(out, "search %q failed: %s\n", r.Term, api.UserMessage(r.Err))
		return
	}
	p := search.Paginate(r.Slots, 1, a.cfg.PageSize)
	fmt.Fprintf(out, "results for %q:\n", r.Term)
	_ = printSlots(out, p.Items)
	printPageFooter(out, p.Number, p.TotalPages, p.Total)
}

func printSlots(w io.Writer, slots []model.PublicSlot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFESSOR\tDISCIPLINE\tDAY\tTIME\tLOCATION")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%s\n",
			s.ProfessorName, s.DisciplineName, s.DayOfWeek, s.Start, s.End, s.Location)
	}
	return tw.Flush()
}
