// signalctl is the operator CLI for a running signald instance. It drives
// the HTTP trigger surface: manual recompute runs, enrichment sweeps, and
// dead-letter inspection/requeue.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/haulcommand/signal-engine/internal/enrich"
	"github.com/haulcommand/signal-engine/internal/scheduler"
	"github.com/haulcommand/signal-engine/internal/signal"
)

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "signalctl",
		Short: "Admin CLI for the signal scoring engine",
		Long: `signalctl drives a running signald instance over its HTTP API:
trigger recompute runs, drain the enrichment queue, and inspect or requeue
dead-lettered jobs.`,
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "signald base URL")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(deadletterCmd())
	rootCmd.AddCommand(anomaliesCmd())
	rootCmd.AddCommand(rankCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "run <scorer>",
		Short: "Trigger a synchronous recompute batch for one scorer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/run/" + args[0]
			if batchSize > 0 {
				path += fmt.Sprintf("?batch_size=%d", batchSize)
			}
			var sum scheduler.Summary
			if err := post(path, &sum); err != nil {
				return err
			}
			fmt.Printf("%s scorer=%s processed=%d succeeded=%d failed=%d anomalies=%d\n",
				color.New(color.FgGreen).Sprint("OK"),
				sum.Scorer, sum.Processed, sum.Succeeded, sum.Failed, sum.AnomaliesFlagged)
			if sum.AnomaliesFlagged > 0 {
				fmt.Printf("  %s %d anomaly flag(s) raised — check `signalctl anomalies`\n",
					color.New(color.FgYellow).Sprint("!"), sum.AnomaliesFlagged)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch", 0, "batch size (0 = server default)")
	return cmd
}

func sweepCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Drain due enrichment jobs once",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/enrich/sweep"
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}
			var sum enrich.Summary
			if err := post(path, &sum); err != nil {
				return err
			}
			fmt.Printf("%s claimed=%d completed=%d retried=%d dead_lettered=%d\n",
				color.New(color.FgGreen).Sprint("OK"),
				sum.Claimed, sum.Completed, sum.Retried, sum.DeadLettered)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max jobs to claim (0 = server default)")
	return cmd
}

func deadletterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and requeue dead-lettered enrichment jobs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				DeadLetters []signal.EnrichmentJob `json:"dead_letters"`
			}
			if err := get(fmt.Sprintf("/v1/deadletters?limit=%d", limit), &resp); err != nil {
				return err
			}
			if len(resp.DeadLetters) == 0 {
				fmt.Println("no dead letters")
				return nil
			}
			for _, job := range resp.DeadLetters {
				fmt.Printf("%s  %-10s entity=%s attempts=%d created=%s\n",
					color.New(color.FgRed).Sprint(job.ID),
					job.Kind, job.EntityID, job.Attempts,
					job.CreatedAt.Format(time.RFC3339))
				if job.LastError != "" {
					fmt.Printf("    %s\n", job.LastError)
				}
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 100, "max jobs to list")

	requeueCmd := &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Requeue a dead-lettered job for another round of attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Requeued string `json:"requeued"`
			}
			if err := post("/v1/deadletters/"+args[0]+"/requeue", &resp); err != nil {
				return err
			}
			fmt.Printf("%s requeued %s\n", color.New(color.FgGreen).Sprint("OK"), resp.Requeued)
			return nil
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(requeueCmd)
	return cmd
}

func anomaliesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List recent anomaly flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Anomalies []signal.AnomalyFlag `json:"anomalies"`
			}
			if err := get(fmt.Sprintf("/v1/anomalies?limit=%d", limit), &resp); err != nil {
				return err
			}
			if len(resp.Anomalies) == 0 {
				fmt.Println("no anomaly flags")
				return nil
			}
			for _, flag := range resp.Anomalies {
				fmt.Printf("%s  scorer=%s entity=%s %.1f -> %.1f (delta %+.1f) at %s\n",
					color.New(color.FgYellow).Sprint(flag.ID),
					flag.Scorer, flag.EntityID,
					flag.PrevScore, flag.NewScore, flag.Delta,
					flag.RaisedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max flags to list")
	return cmd
}

func rankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank <entity-id>",
		Short: "Show an operator's reputation total and tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				EntityID string `json:"entity_id"`
				Total    int    `json:"total"`
				Events   int    `json:"events"`
				Tier     struct {
					Name  string `json:"name"`
					Boost int    `json:"boost"`
				} `json:"tier"`
			}
			if err := get("/v1/reputation/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Printf("%s total=%d events=%d tier=%s boost=%d\n",
				color.New(color.FgCyan).Sprint(resp.EntityID),
				resp.Total, resp.Events, resp.Tier.Name, resp.Tier.Boost)
			return nil
		},
	}
}

func get(path string, into any) error {
	resp, err := http.Get(strings.TrimRight(addr, "/") + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decode(path, resp, into)
}

func post(path string, into any) error {
	resp, err := http.Post(strings.TrimRight(addr, "/")+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decode(path, resp, into)
}

func decode(path string, resp *http.Response, into any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", path, envelope.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
