// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagesync/internal/action"
	"github.com/xkilldash9x/pagesync/internal/config"
	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/driver/cdpdriver"
	"github.com/xkilldash9x/pagesync/internal/plan"
)

// pageProvider opens the page source plans run against.
type pageProvider interface {
	Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (pageSource, error)
}

// pageSource hands out one isolated page per plan.
type pageSource interface {
	NewPage(ctx context.Context) (driver.Driver, func(), error)
	Close()
}

// chromeProvider launches Chrome, or attaches to a remote one.
type chromeProvider struct{}

func (chromeProvider) Open(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (pageSource, error) {
	b, err := cdpdriver.Launch(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return chromeSource{b}, nil
}

type chromeSource struct {
	*cdpdriver.Browser
}

func (s chromeSource) NewPage(ctx context.Context) (driver.Driver, func(), error) {
	d, release, err := s.NewTab(ctx)
	if err != nil {
		return nil, nil, err
	}
	return d, release, nil
}

func newRunCmd(state *appState, provider pageProvider) *cobra.Command {
	var (
		remote, reportPath string
		headful            bool
	)

	cmd := &cobra.Command{
		Use:   "run <plan.json>...",
		Short: "Run plans, each in its own tab",
		Long: `Runs every plan file in its own browser tab, at most browser.concurrency at a time.
Each step waits for the page update it triggers before the next one starts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plans := make([]*plan.Plan, 0, len(args))
			for _, path := range args {
				p, err := plan.Load(path)
				if err != nil {
					return err
				}
				plans = append(plans, p)
			}

			if remote != "" {
				state.cfg.SetBrowserRemoteURL(remote)
			}
			if headful {
				state.cfg.SetBrowserHeadless(false)
			}
			source, err := provider.Open(cmd.Context(), state.cfg.Browser(), state.logger)
			if err != nil {
				return err
			}
			defer source.Close()

			reports, runErr := runPlans(cmd.Context(), state, source, plans)
			if err := writeReports(cmd.OutOrStdout(), reportPath, reports); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "DevTools websocket URL of a running browser (overrides browser.remote_url)")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window (overrides browser.headless)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the JSON report to this file, or '-' for stdout")
	return cmd
}

// runPlans runs every plan on its own page. A failing plan does not stop the others;
// failing to obtain a page does.
func runPlans(ctx context.Context, state *appState, source pageSource, plans []*plan.Plan) ([]*plan.Report, error) {
	sc := state.cfg.Sync()
	settings := plan.Settings{
		Defaults:         state.defaults,
		OnTimeout:        sc.OnTimeout(),
		DefaultIndex:     sc.DefaultIndex,
		ListMaxRefreshes: sc.ListMaxRefreshes,
	}

	reports := make([]*plan.Report, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(state.cfg.Browser().Concurrency)

	for i, p := range plans {
		g.Go(func() error {
			page, release, err := source.NewPage(gctx)
			if err != nil {
				return fmt.Errorf("plan %s: %w", p.Name, err)
			}
			defer release()

			logger := state.logger.With(zap.String("plan", p.Name))
			orch := action.New(page, logger, action.WithMarkerTag(sc.MarkerTag))
			report, err := plan.NewRunner(page, orch, settings, logger).Run(gctx, p)
			reports[i] = report
			if err != nil {
				logger.Warn("Plan failed.", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return collected(reports), err
	}

	failed := 0
	for _, r := range reports {
		if !r.Succeeded {
			failed++
		}
	}
	if failed > 0 {
		return reports, fmt.Errorf("%d of %d plans failed", failed, len(plans))
	}
	return reports, nil
}

func collected(reports []*plan.Report) []*plan.Report {
	out := make([]*plan.Report, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// writeReports prints a one-line summary per plan, or the JSON report when path is set.
func writeReports(stdout io.Writer, path string, reports []*plan.Report) error {
	switch path {
	case "":
		for _, r := range reports {
			status := "PASS"
			if !r.Succeeded {
				status = "FAIL"
			}
			fmt.Fprintf(stdout, "%s %s (%d steps, %d timeouts, %s)\n",
				status, r.Plan, len(r.Steps), r.Timeouts(), r.Duration)
		}
		return nil
	case "-":
		return plan.WriteReports(stdout, reports)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := plan.WriteReports(f, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
