package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/target/prospector/internal/domain/model"
)

var startRunCmd = &cobra.Command{
	Use:   "start-run",
	Short: "Start a prospecting run for an audience",
	Long: `Starts a run and enqueues its job. --audience accepts an audience id or name.
--max-prospects of 0 uses the server default; larger values are clamped by the server.`,
	Args: cobra.NoArgs,
	RunE: runStartRun,
}

var queueStatsCmd = &cobra.Command{
	Use:   "queue-stats",
	Short: "Show job counts for the worker queue",
	Args:  cobra.NoArgs,
	RunE:  runQueueStats,
}

var (
	startAudience     string
	startLocation     string
	startMaxProspects int
)

func init() {
	startRunCmd.Flags().StringVarP(&startAudience, "audience", "a", "", "Audience id or name")
	startRunCmd.Flags().StringVarP(&startLocation, "location", "l", "", "Location to search, e.g. \"Cape Town\"")
	startRunCmd.Flags().IntVar(&startMaxProspects, "max-prospects", 0, "Maximum prospects to collect")
	_ = startRunCmd.MarkFlagRequired("audience")
	_ = startRunCmd.MarkFlagRequired("location")

	rootCmd.AddCommand(startRunCmd, queueStatsCmd)
}

func runStartRun(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient(apiURL, apiTimeout)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	audienceID, err := resolveAudience(cmd, client, strings.TrimSpace(startAudience))
	if err != nil {
		return err
	}

	var handle model.RunHandle
	if _, err := client.do(ctx, http.MethodPost, "/api/runs", nil, model.StartRunRequest{
		AudienceID:   audienceID,
		Location:     startLocation,
		MaxProspects: startMaxProspects,
	}, &handle); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s %s\n", handle.ID, handle.Status)
	return err
}

// resolveAudience returns ref itself when it names an existing audience id,
// otherwise the id of the audience with that name.
func resolveAudience(cmd *cobra.Command, client *apiClient, ref string) (string, error) {
	var a model.Audience
	err := client.get(cmd.Context(), "/api/audiences/"+url.PathEscape(ref), nil, &a)
	if err == nil {
		return a.ID, nil
	}
	if !isNotFound(err) {
		return "", err
	}

	var items []model.Audience
	if err := client.get(cmd.Context(), "/api/audiences", url.Values{"limit": {"1000"}}, &items); err != nil {
		return "", err
	}
	for _, item := range items {
		if item.Name == ref {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("audience %q not found", ref)
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func runQueueStats(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient(apiURL, apiTimeout)
	if err != nil {
		return err
	}
	var stats model.JobStats
	if err := client.get(cmd.Context(), "/api/jobs/stats", nil, &stats); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "pending:  %d\nreserved: %d\ndead:     %d\n",
		stats.Pending, stats.Reserved, stats.Dead)
	return err
}
