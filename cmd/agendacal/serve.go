package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"agendaaberta/internal/agenda"
	"agendaaberta/internal/capture"
	"agendaaberta/internal/ics"
	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/scheduler"
	"agendaaberta/internal/web"
)

// refreshJob reloads the window around today, rewrites the ICS file when
// configured and drops the server cache.
func (a *app) refreshJob(loader *agenda.Loader, srv *web.Server) scheduler.Job {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout()*3)
		defer cancel()

		snap, err := loader.Load(ctx, time.Now())
		if err != nil && !errors.Is(err, agenda.ErrStale) {
			return err
		}
		if a.cfg.ICSPath != "" {
			err := ics.WriteFile(a.cfg.ICSPath, snap.Occurrences, ics.ExportOptions{
				Name:     a.cfg.CalendarName,
				Timezone: loader.Location().String(),
				Stamp:    snap.LoadedAt,
			})
			if err != nil {
				return err
			}
			appLog.Info("ics written", "path", a.cfg.ICSPath, "events", len(snap.Occurrences))
		}
		srv.Invalidate()
		return nil
	}
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar over HTTP and refresh it on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen = listen
			}
			if _, err := a.sess.RequireUser(); err != nil {
				appLog.Info("serving without a session; calendar routes answer 401 until `agendacal login`")
			}

			loader := agenda.NewLoader(a.sess, a.cfg.Location())
			srv := web.NewServer(a.cfg, loader)

			sched, err := scheduler.New(a.cfg.RefreshCron, loader.Location(), a.refreshJob(loader, srv))
			if err != nil {
				return err
			}
			// An initial failure is logged by the scheduler; the server still
			// starts and retries on the next tick.
			_ = sched.RunOnce(ctx)

			schedDone, err := sched.Start(ctx)
			if err != nil {
				return err
			}
			err = srv.Run(ctx)
			<-schedDone
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config listen)")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		date   string
		output string
		width  int
		height int
		chrome string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the month grid to a PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if _, err := a.referenceDate(date); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return fmt.Errorf("listen for snapshot server: %w", err)
			}
			loader := agenda.NewLoader(a.sess, a.cfg.Location())
			srv := &http.Server{
				Handler:           web.NewServer(a.cfg, loader).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appLog.Error("snapshot server failed", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			target := url.URL{Scheme: "http", Host: ln.Addr().String(), Path: "/calendar"}
			if date != "" {
				target.RawQuery = url.Values{"date": {date}}.Encode()
			}
			opts := capture.Options{
				URL:        target.String(),
				OutputPath: output,
				Width:      width,
				Height:     height,
				Timeout:    capture.DefaultTimeout,
				ExecPath:   chrome,
			}
			if ba := a.cfg.BasicAuth; ba != nil {
				opts.Username, opts.Password = ba.Username, ba.Password
			}

			png, err := capture.CalendarPNG(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(png), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	f.StringVarP(&output, "output", "o", "calendar.png", "PNG output path")
	f.IntVar(&width, "width", capture.DefaultWidth, "Viewport width")
	f.IntVar(&height, "height", capture.DefaultHeight, "Viewport height")
	f.StringVar(&chrome, "chrome", "", "Chromium binary (default: auto-detect)")
	return cmd
}
