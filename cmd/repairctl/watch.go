package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/stream"
	"github.com/spec-kit/repair-tracker/internal/summary"
)

var (
	serverURL string
	token     string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh an epic on the server and follow its progress feed",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&serverURL, "server", envOr("REPAIRCTL_SERVER", "http://127.0.0.1:8080"), "Server base URL")
	watchCmd.Flags().StringVar(&token, "token", os.Getenv("REPAIRCTL_TOKEN"), "Operator bearer token")
	watchCmd.Flags().StringVar(&rtNumber, "rt", "", "Epic key or number")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := requireRT(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	body, err := openFeed(ctx, rtNumber)
	if err != nil {
		return err
	}
	defer body.Close()

	bar := newSpinner("Waiting for tracker")
	defer finishBar(bar)

	var final *service.SyncResult
	err = stream.Consume(ctx, body, func(ev stream.Event) error {
		switch ev.Kind {
		case stream.EventProgress:
			renderProgress(bar, ev.Progress)
		case stream.EventError:
			fmt.Fprintf(os.Stderr, "\nskipping line %d: %v\n", ev.Err.Line, ev.Err.Err)
		case stream.EventRecord:
			var rec stream.ErrorRecord
			if json.Unmarshal(ev.Record, &rec) == nil && rec.Error != "" {
				return errors.New(rec.Error)
			}
			var result service.SyncResult
			if err := json.Unmarshal(ev.Record, &result); err != nil {
				return err
			}
			final = &result
		}
		return nil
	})
	finishBar(bar)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	if final == nil {
		return errors.New("update feed ended without a result")
	}
	fmt.Printf("\n%s refreshed: %d issues, %d skipped (run %s)\n", final.EpicKey, final.IssueCount, final.Skipped, final.RunID)
	return nil
}

func openFeed(ctx context.Context, rt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]string{"rt_number": rt})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(serverURL, "/") + "/api/update_issues"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}

func renderProgress(bar *progressbar.ProgressBar, p stream.Progress) {
	if p.Total > 0 && bar.GetMax() != p.Total {
		bar.ChangeMax(p.Total)
	}
	bar.Describe(summary.Progress(p.Current, p.Total))
	_ = bar.Set(p.Current)
}
