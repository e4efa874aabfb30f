package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flowsync/pkg/flowsync/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sync rounds",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 20, "maximum number of rounds to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	if !eng.cfg.History.Enabled {
		fmt.Println("Sync history is disabled (history.enabled: false).")
		return nil
	}

	log, err := history.Open(eng.cfg.History.Path)
	if err != nil {
		return err
	}
	defer log.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := log.List(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No sync rounds recorded yet.")
		return nil
	}

	for _, e := range entries {
		status := "sent"
		if e.Committed {
			status = "committed"
		}
		fmt.Printf("%s  %-9s  branch=%s files=%d warnings=%d  %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			status, e.Branch, e.ChangedFiles, e.Warnings, e.RequestID)
	}
	return nil
}
