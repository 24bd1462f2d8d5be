package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spec-kit/repair-tracker/internal/domain"
	"github.com/spec-kit/repair-tracker/internal/export"
	"github.com/spec-kit/repair-tracker/internal/service"
	"github.com/spec-kit/repair-tracker/internal/summary"
	"github.com/spec-kit/repair-tracker/internal/timeline"
)

var (
	diffDay       string
	diffLabel     string
	diffAdjacency string
	diffDirection string
	exportOut     string
	exportLabels  []string
	serial        string
	repairOnly    bool
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List stored repair orders",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		now := time.Now()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RT\tTITLE\tISSUES\tCREATED\tSTATE")
		for _, o := range ws.epics.Orders() {
			state := "unknown"
			if o.IsClosed != nil && *o.IsClosed {
				state = "closed"
			} else if o.IsClosed != nil {
				state = "open"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Key, o.Title, humanize.Comma(int64(o.IssueCount)), summary.Age(o.Created, now), state)
		}
		return tw.Flush()
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print daily label counts of an epic",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireRT(cmd); err != nil {
			return err
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		view, err := ws.timelines.View(cmd.Context(), rtNumber, trimmed)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", view.EpicKey, view.Title)
		if view.Timeline == nil {
			fmt.Println("no qualifying issues")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "DAY\t%s\t\n", strings.Join(view.Timeline.Labels, "\t"))
		for i, day := range view.Timeline.Days {
			row := make([]string, 0, len(view.Series))
			for _, s := range view.Series {
				row = append(row, fmt.Sprintf("%d", s.Counts[i]))
			}
			marker := ""
			if !ws.calendar.IsWorkday(day) {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s%s\t%s\t\n", day, marker, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if view.Peak != nil {
			fmt.Printf("peak %s: %d on %s\n", view.Peak.Label, view.Peak.Count, view.Peak.Day)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show which issues entered and left a label on a day",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireRT(cmd); err != nil {
			return err
		}
		if diffDay == "" || diffLabel == "" {
			return fmt.Errorf("diff: --day and --label are required")
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		result, err := ws.timelines.Diff(cmd.Context(), service.DiffRequest{
			EpicKey:   rtNumber,
			Day:       diffDay,
			Label:     diffLabel,
			Adjacency: timeline.Adjacency(diffAdjacency),
			Direction: timeline.Direction(diffDirection),
			Trimmed:   trimmed,
		})
		if err != nil {
			return err
		}
		printDiff(result)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the timeline of an epic and its daily diffs to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireRT(cmd); err != nil {
			return err
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		view, err := ws.timelines.View(cmd.Context(), rtNumber, trimmed)
		if err != nil {
			return err
		}
		if view.Timeline == nil {
			return fmt.Errorf("%s has no qualifying issues", view.EpicKey)
		}

		var diffs []timeline.DiffResult
		if len(exportLabels) > 0 {
			bar := progressbar.NewOptions(len(exportLabels)*len(view.Timeline.Days),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Diffing"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
			)
			rules := ws.timelines.Rules()
			for _, label := range exportLabels {
				for _, day := range view.Timeline.Days {
					diffs = append(diffs, timeline.Diff(view.Timeline, day, label, rules))
					_ = bar.Add(1)
				}
			}
			finishBar(bar)
		}

		out := exportOut
		if out == "" {
			out = view.EpicKey + ".xlsx"
		}
		wb := export.Workbook{EpicKey: view.EpicKey, Title: view.Title, Timeline: view.Timeline, Diffs: diffs}
		if view.Peak != nil {
			wb.PeakLabel = view.Peak.Label
		}
		if err := export.NewExporter(ws.calendar).SaveAs(out, wb); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d days, %d diff sheets)\n", out, len(view.Timeline.Days), len(diffs))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the status history of one board, or the repair report of an epic",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireRT(cmd); err != nil {
			return err
		}
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		if serial != "" {
			s, err := ws.summaries.IssueSummary(cmd.Context(), rtNumber, serial)
			if err != nil {
				return err
			}
			return summary.Render(os.Stdout, s)
		}

		snap, err := ws.epics.Snapshot(cmd.Context(), rtNumber)
		if err != nil {
			return err
		}
		items := summary.All(snap.Epic, domain.IssueKindTask)
		if repairOnly {
			items = summary.RepairReport(snap.Epic, summary.DefaultRepairFilter())
		}
		for _, s := range items {
			if err := summary.Render(os.Stdout, s); err != nil {
				return err
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{timelineCmd, diffCmd, exportCmd, summaryCmd} {
		c.Flags().StringVar(&rtNumber, "rt", "", "Epic key or number")
	}
	for _, c := range []*cobra.Command{timelineCmd, diffCmd, exportCmd} {
		c.Flags().BoolVar(&trimmed, "trim", false, "Apply the trim rule")
	}

	diffCmd.Flags().StringVar(&diffDay, "day", "", "Day to inspect (YYYY-MM-DD)")
	diffCmd.Flags().StringVar(&diffLabel, "label", "", "Label to inspect")
	diffCmd.Flags().StringVar(&diffAdjacency, "adjacency", "", "index or workday")
	diffCmd.Flags().StringVar(&diffDirection, "direction", "", "prev or next")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default <RT>.xlsx)")
	exportCmd.Flags().StringSliceVar(&exportLabels, "diff-label", nil, "Labels to add day-by-day diff sheets for")

	summaryCmd.Flags().StringVar(&serial, "serial", "", "Board serial")
	summaryCmd.Flags().BoolVar(&repairOnly, "repair", false, "Only boards with a finished repair")
}

func printDiff(d timeline.DiffResult) {
	fmt.Printf("%s  %s -> %s\n", d.Label, d.From, d.To)
	for _, bucket := range []struct {
		name  string
		items []timeline.DiffItem
	}{{"removed", d.Removed}, {"unchanged", d.Unchanged}, {"added", d.Added}} {
		fmt.Printf("  %s (%d)\n", bucket.name, len(bucket.items))
		for _, it := range bucket.items {
			fmt.Printf("    %s\n", it.Display)
		}
	}
}
