package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/prospector/internal/domain/model"
)

var audiencesCmd = &cobra.Command{
	Use:   "audiences",
	Short: "List audiences",
	Args:  cobra.NoArgs,
	RunE:  runAudiences,
}

var audienceDeleteCmd = &cobra.Command{
	Use:   "audience-delete <id>",
	Short: "Delete an audience",
	Long: `Deletes an audience. --policy is required and decides what happens to its runs:
  cascade  delete the runs and everything they produced
  detach   keep the runs and clear their audience reference`,
	Args: cobra.ExactArgs(1),
	RunE: runAudienceDelete,
}

var (
	audiencesLimit  int
	audiencesOffset int
	deletePolicy    string
)

func init() {
	audiencesCmd.Flags().IntVar(&audiencesLimit, "limit", 50, "Maximum audiences to list")
	audiencesCmd.Flags().IntVar(&audiencesOffset, "offset", 0, "Number of audiences to skip")

	audienceDeleteCmd.Flags().StringVar(&deletePolicy, "policy", "", "Delete policy: cascade or detach")
	_ = audienceDeleteCmd.MarkFlagRequired("policy")

	rootCmd.AddCommand(audiencesCmd, audienceDeleteCmd)
}

func runAudiences(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient(apiURL, apiTimeout)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(audiencesLimit))
	q.Set("offset", strconv.Itoa(audiencesOffset))

	var items []model.Audience
	if err := client.get(cmd.Context(), "/api/audiences", q, &items); err != nil {
		return err
	}
	return printAudiences(cmd.OutOrStdout(), items)
}

// maxProspectsOf reads the per-run cap an audience config may carry.
func maxProspectsOf(cfg json.RawMessage) string {
	var doc struct {
		MaxProspectsPerRun *int `json:"max_prospects_per_run"`
	}
	if json.Unmarshal(cfg, &doc) != nil || doc.MaxProspectsPerRun == nil {
		return "-"
	}
	return strconv.Itoa(*doc.MaxProspectsPerRun)
}

func printAudiences(out io.Writer, items []model.Audience) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "(no audiences)")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tNAME\tMAX PROSPECTS\tUPDATED"); err != nil {
		return err
	}
	for _, a := range items {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			a.ID, a.Name, maxProspectsOf(a.Config), a.UpdatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runAudienceDelete(cmd *cobra.Command, args []string) error {
	policy, err := model.ParseAudienceDeletePolicy(deletePolicy)
	if err != nil {
		return err
	}
	client, err := newAPIClient(apiURL, apiTimeout)
	if err != nil {
		return err
	}
	res, err := deleteAudience(cmd.Context(), client, args[0], policy)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted audience %s (policy %s, runs affected: %d)\n",
		args[0], res.Policy, res.RunsAffected)
	return err
}

func deleteAudience(
	ctx context.Context,
	client *apiClient,
	id string,
	policy model.AudienceDeletePolicy,
) (*model.AudienceDeleteResult, error) {
	q := url.Values{}
	q.Set("policy", string(policy))
	var res model.AudienceDeleteResult
	if _, err := client.do(ctx, "DELETE", "/api/audiences/"+url.PathEscape(id), q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
