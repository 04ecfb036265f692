package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/MrCodeEU/facegate/pkg/audit"
	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/spf13/cobra"
)

var (
	auditLimit   int
	auditSubject string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent liveness verdicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAudit()
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of entries to show")
	auditCmd.Flags().StringVarP(&auditSubject, "subject", "s", "", "Only show entries for this subject")
	rootCmd.AddCommand(auditCmd)
}

func runAudit() error {
	if !cfg.Audit.Enabled {
		fmt.Println("Audit log is disabled.")
		return nil
	}
	if auditLimit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", auditLimit)
	}

	store, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(auditSubject, auditLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No liveness verdicts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tSUBJECT\tATTEMPT\tCHALLENGE\tLIVE\tREASON\tFRAMES")
	fmt.Fprintln(w, "----\t-------\t-------\t---------\t----\t------\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%s\t%d\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Subject, e.Attempt, e.Challenge, e.Live, e.Reason, e.FramesCollected)
	}
	w.Flush()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("\nTotal: %d verdict(s), %.1f%% live\n", stats.Total, stats.PassRate()*100)
	reasons := make([]string, 0, len(stats.ByReason))
	for r := range stats.ByReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %-22s %d\n", r, stats.ByReason[liveness.Reason(r)])
	}
	return nil
}
