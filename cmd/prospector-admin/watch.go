package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/realtime"
	"github.com/target/prospector/internal/watch"
)

const clearScreen = "\033[H\033[2J"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of runs and prospects",
	Long: `Subscribes to the change stream and redraws the run table whenever it changes.
Filters are JMESPath expressions evaluated by the server against each row's view, e.g.
  --filter-runs "status == 'running'"`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchTables          string
	watchFilterRuns      string
	watchFilterProspects string
	watchClear           bool
	watchOnce            bool
)

func init() {
	watchCmd.Flags().StringVar(&watchTables, "tables", "", "Comma-separated tables to watch (default all)")
	watchCmd.Flags().StringVar(&watchFilterRuns, "filter-runs", "", "JMESPath filter for workflow_runs")
	watchCmd.Flags().StringVar(&watchFilterProspects, "filter-prospects", "", "JMESPath filter for prospects")
	watchCmd.Flags().BoolVar(&watchClear, "clear", false, "Clear the terminal before each redraw")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Print the initial snapshot and exit")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	tables, err := model.ParseTables(watchTables)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := &watchView{out: cmd.OutOrStdout(), clear: watchClear}
	client, err := watch.New(watch.Options{
		BaseURL: apiURL,
		Tables:  tables,
		Filters: map[model.Table]string{
			model.TableWorkflowRuns: watchFilterRuns,
			model.TableProspects:    watchFilterProspects,
		},
		Logger: logger,
		OnReady: func(_ string, m *realtime.Mirror) {
			v.render(m)
			if watchOnce {
				cancel()
			}
		},
		OnChange: func(_ realtime.Change, m *realtime.Mirror) { v.render(m) },
	})
	if err != nil {
		return err
	}
	return client.Run(ctx)
}

// watchView redraws the mirror as a table.
type watchView struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
}

func (v *watchView) render(m *realtime.Mirror) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.clear {
		_, _ = io.WriteString(v.out, clearScreen)
	}
	if err := writeRunTable(v.out, m.Runs(), m.Prospects()); err != nil {
		logger.Warn("render watch view failed", "error", err)
	}
}

func writeRunTable(out io.Writer, runs []model.RunView, prospects []model.ProspectView) error {
	perRun := make(map[string]int, len(runs))
	for _, p := range prospects {
		perRun[p.RunID]++
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "RUN\tAUDIENCE\tLOCATION\tSTATUS\tPROSPECTS\tUPDATED"); err != nil {
		return err
	}
	for _, r := range runs {
		audience := "-"
		if r.AudienceName != nil {
			audience = *r.AudienceName
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			r.ID, audience, r.Location, r.Status, perRun[r.ID], r.MaxProspects,
			r.UpdatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d runs, %d prospects\n", len(runs), len(prospects))
	return err
}
