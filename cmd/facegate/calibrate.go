package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recording"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Replay all labelled recordings and report threshold agreement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCalibrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

type calibrationRow struct {
	ID      string
	Label   string
	Verdict liveness.Verdict
	Err     error
}

// calibrationReport counts how often verdicts agree with recording labels.
type calibrationReport struct {
	Rows          []calibrationRow
	Agree         int
	FalseAccepts  int
	FalseRejects  int
	Errors        int
	MaxSpoofDelta float64
	MinLiveDelta  float64
}

func newCalibrationReport() *calibrationReport {
	return &calibrationReport{MinLiveDelta: -1}
}

func (r *calibrationReport) add(rec *recording.Recording, v liveness.Verdict, err error) {
	r.Rows = append(r.Rows, calibrationRow{ID: rec.ID, Label: rec.Label, Verdict: v, Err: err})
	if err != nil {
		r.Errors++
		return
	}

	wantLive := rec.Label == recording.LabelLive
	switch {
	case v.Live == wantLive:
		r.Agree++
	case v.Live:
		r.FalseAccepts++
	default:
		r.FalseRejects++
	}

	delta := v.Metrics.MotionDelta
	if wantLive {
		if r.MinLiveDelta < 0 || delta < r.MinLiveDelta {
			r.MinLiveDelta = delta
		}
	} else if delta > r.MaxSpoofDelta {
		r.MaxSpoofDelta = delta
	}
}

// Evaluated returns the number of recordings that produced a verdict.
func (r *calibrationReport) Evaluated() int {
	return len(r.Rows) - r.Errors
}

func runCalibrate(ctx context.Context) error {
	ids, err := recordings.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No recordings found. Use 'facegate import <file>' to add labelled sessions.")
		return nil
	}

	engine := cfg.Liveness.ToEngine()
	report := newCalibrationReport()

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Replaying recordings"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := recordings.Load(id)
		if err != nil {
			logging.Warnf("Skipping recording %s: %v", id, err)
			report.add(&recording.Recording{ID: id}, liveness.Verdict{}, err)
			_ = bar.Add(1)
			continue
		}

		v, err := recording.Check(ctx, engine, rec, "")
		report.add(rec, v, err)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	printCalibration(report)
	return nil
}

func printCalibration(r *calibrationReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tCHALLENGE\tLIVE\tREASON\tMIN EAR\tYAW DELTA\tMOTION")
	fmt.Fprintln(w, "--\t-----\t---------\t----\t------\t-------\t---------\t------")
	for _, row := range r.Rows {
		if row.Err != nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\terror: %v\t-\t-\t-\n", row.ID, row.Label, row.Err)
			continue
		}
		m := row.Verdict.Metrics
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%.3f\t%.3f\t%.2f\n",
			row.ID, row.Label, row.Verdict.Challenge, row.Verdict.Live, row.Verdict.Reason,
			m.MinEAR, m.YawDelta, m.MotionDelta)
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("Agreement:     %d/%d\n", r.Agree, r.Evaluated())
	fmt.Printf("False accepts: %d\n", r.FalseAccepts)
	fmt.Printf("False rejects: %d\n", r.FalseRejects)
	if r.Errors > 0 {
		fmt.Printf("Errors:        %d\n", r.Errors)
	}
	if r.MinLiveDelta >= 0 {
		fmt.Printf("Lowest motion delta on live recordings:  %.2f\n", r.MinLiveDelta)
	}
	fmt.Printf("Highest motion delta on spoof recordings: %.2f\n", r.MaxSpoofDelta)
	fmt.Printf("Motion threshold in use:                  %.2f\n", cfg.Liveness.MotionThreshold)
}
