package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/flowsync/pkg/flowsync/api"
	"github.com/jamesainslie/flowsync/pkg/flowsync/config"
	"github.com/jamesainslie/flowsync/pkg/flowsync/history"
	"github.com/jamesainslie/flowsync/pkg/flowsync/scanner"
	"github.com/jamesainslie/flowsync/pkg/flowsync/syncer"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local delta to the remote",
	Long: `Push refreshes the file state, packages every changed file plus the
function diff into a sync payload, and sends it. The local baselines are
committed only when the remote accepts the round; a failed push leaves the
state untouched so a retry recomputes the same delta.`,
	RunE: runPush,
}

func init() {
	pushCmd.Flags().Bool("no-commit", false, "send but do not commit local baselines")
	pushCmd.Flags().Duration("timeout", 2*time.Minute, "sync call timeout")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	if err := eng.cfg.Validate(); err != nil {
		return err
	}

	// Refresh checksums so the delta reflects the tree as it is now.
	scan, err := scanner.New(eng.detector, eng.layout, eng.cfg.Exclude)
	if err != nil {
		return err
	}
	if _, err := scan.Bootstrap(); err != nil {
		return err
	}

	transport := api.NewHTTPTransport(nil, eng.cfg.API.URL, eng.cfg.API.Token)
	packager := syncer.New(eng.store, eng.layout, transport)

	payload, err := packager.BuildPayload()
	if err != nil {
		return err
	}
	if len(payload.ChangedPaths) == 0 && payload.Diff.Empty() && !anyDeleted(eng) {
		fmt.Println("Nothing to push: no changes since the last sync.")
		return nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	opts := syncer.SendOptions{
		ProjectID: eng.cfg.ProjectID,
		Branch:    eng.cfg.Branch,
		RequestID: uuid.NewString(),
	}
	resp, err := packager.Send(ctx, payload, opts)
	if err != nil {
		return err
	}

	warnings, err := syncer.DecodeResponse(resp)
	if err != nil {
		return err
	}
	printWarnings(warnings)

	committed := false
	if noCommit, _ := cmd.Flags().GetBool("no-commit"); resp.Success() && !noCommit {
		if err := packager.Commit(); err != nil {
			return fmt.Errorf("committing sync round: %w", err)
		}
		committed = true
		fmt.Printf("Synced %d file(s) on branch %s.\n", len(payload.ChangedPaths), eng.cfg.Branch)
	} else if !resp.Success() {
		printError("remote rejected the sync round (status %d); local state unchanged", resp.StatusCode)
	}

	recordHistory(eng.cfg, history.Entry{
		RequestID:    opts.RequestID,
		Timestamp:    time.Now().UTC(),
		Branch:       eng.cfg.Branch,
		ChangedFiles: len(payload.ChangedPaths),
		Warnings:     countWarnings(warnings),
		Committed:    committed,
	})

	if !resp.Success() {
		return fmt.Errorf("sync round rejected with status %d", resp.StatusCode)
	}
	return nil
}

// anyDeleted reports whether any record is staged for deletion, which is a
// pushable change even with no file content to archive.
func anyDeleted(eng *engine) bool {
	for _, r := range eng.store.Records(true) {
		if r.Deleted {
			return true
		}
	}
	return false
}

// recordHistory best-effort logs the round; failures only warn.
func recordHistory(cfg *config.Config, entry history.Entry) {
	if !cfg.History.Enabled {
		return
	}
	if err := config.EnsureDataDir(); err != nil {
		printError("cannot record history: %v", err)
		return
	}
	log, err := history.Open(cfg.History.Path)
	if err != nil {
		printError("cannot record history: %v", err)
		return
	}
	defer log.Close()

	if err := log.Record(entry); err != nil {
		printError("cannot record history: %v", err)
		return
	}
	_ = log.Cleanup(cfg.History.RetentionDays)
}
