package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/flowsync/pkg/flowsync/fndiff"
	"github.com/jamesainslie/flowsync/pkg/flowsync/scanner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local changes since the last sync",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var (
	dirtyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cleanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	scan, err := scanner.New(eng.detector, eng.layout, eng.cfg.Exclude)
	if err != nil {
		return err
	}
	if _, err := scan.Bootstrap(); err != nil {
		return err
	}

	var dirty, deleted []string
	for key, record := range eng.store.Records(true) {
		switch {
		case record.Deleted:
			deleted = append(deleted, key)
		case record.Dirty():
			dirty = append(dirty, key)
		}
	}
	sort.Strings(dirty)
	sort.Strings(deleted)

	baseline, _ := readFileOrEmpty(eng.layout.BaselinePath())
	current, _ := readFileOrEmpty(eng.layout.FunctionsPath())
	diff := fndiff.Diff(baseline, current)

	if len(dirty) == 0 && len(deleted) == 0 && diff.Empty() {
		fmt.Println(cleanStyle.Render("Clean: nothing to sync."))
		return nil
	}

	for _, key := range dirty {
		fmt.Println(dirtyStyle.Render("  modified: " + key))
	}
	for _, key := range deleted {
		fmt.Println(deletedStyle.Render("  deleted:  " + key))
	}
	for _, r := range diff.Renamed {
		fmt.Println(dirtyStyle.Render(fmt.Sprintf("  function renamed: %s -> %s", r.OldName, r.NewName)))
	}
	for _, name := range diff.Added {
		fmt.Println(dirtyStyle.Render("  function added:   " + name))
	}
	for _, name := range diff.Deleted {
		fmt.Println(deletedStyle.Render("  function deleted: " + name))
	}

	fmt.Printf("%d file(s) pending sync on branch %s.\n", len(dirty)+len(deleted), eng.cfg.Branch)
	return nil
}
