// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/replayprobe/services/replay/history"
	store "github.com/AleutianAI/replayprobe/services/replay/storage/badger"
)

var errHistoryDisabled = errors.New("history is disabled in the configuration")

// openHistory opens the configured history store.
func (a *app) openHistory() (*history.Store, error) {
	hc := a.cfg.History
	if hc.Disabled {
		return nil, errHistoryDisabled
	}

	var cfg store.Config
	if hc.InMemory {
		cfg = store.InMemoryConfig()
	} else {
		cfg = store.DefaultConfig(a.cfg.HistoryDir())
	}
	cfg.Logger = a.slog()

	s, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return s, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past explorations",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryShowCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var filter history.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List explorations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openHistory()
			if err != nil {
				return err
			}
			defer s.Close()

			reports, err := s.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := a.printer(cmd.OutOrStdout())
			if len(reports) == 0 {
				out.Warning("no explorations recorded")
				return nil
			}
			out.Table(historyHeader, historyRows(reports))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.RecordingID, "recording", "", "only runs of this recording")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of runs, 0 for all")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one exploration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openHistory()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderReport(a.printer(cmd.OutOrStdout()), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored report as JSON")
	return cmd
}
