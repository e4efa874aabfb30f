package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/flowsync/pkg/flowsync/scanner"
	"github.com/jamesainslie/flowsync/pkg/flowsync/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Track edits to the project's custom code live",
	Long: `Watch runs a bootstrap scan, then follows filesystem events on the
tracked directories until interrupted. Every create, write, and remove is
folded into the file state so a later push sends exactly the accumulated
delta.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	scan, err := scanner.New(eng.detector, eng.layout, eng.cfg.Exclude)
	if err != nil {
		return err
	}
	seeded, err := scan.Bootstrap()
	if err != nil {
		return err
	}
	fmt.Printf("Tracking %d file(s) under %s. Press Ctrl-C to stop.\n", seeded, eng.layout.Root())

	w, err := watcher.New(eng.detector, eng.layout, eng.cfg.Exclude)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("Stopped.")
	return nil
}
