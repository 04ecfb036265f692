package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a labelled recording from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recordings.Import(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported recording '%s' (%s, %d frames, %s)\n", rec.ID, rec.Label, len(rec.Frames), rec.Duration())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored recordings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <recording-id>",
	Short: "Remove a stored recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := recordings.Delete(id); err != nil {
			return err
		}
		logging.Infof("Removed recording %s", id)
		fmt.Printf("Recording '%s' has been removed.\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd, listCmd, removeCmd)
}

func runList() error {
	ids, err := recordings.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No recordings stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tCHALLENGE\tFRAMES\tDURATION\tCREATED")
	fmt.Fprintln(w, "--\t-----\t---------\t------\t--------\t-------")
	for _, id := range ids {
		rec, err := recordings.Load(id)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\terror: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", rec.ID, rec.Label, rec.Challenge, len(rec.Frames),
			rec.Duration(), rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d recording(s)\n", len(ids))
	return nil
}
