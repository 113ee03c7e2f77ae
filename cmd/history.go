// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show log entries recorded in the journal",
	Long: `Prints entries from the SQLite journal written by earlier runs, oldest
first. Requires [journal] enabled or --journal when running.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("journal", "", "Journal file (default journal.path)")
	historyCmd.Flags().IntP("limit", "n", 50, "Number of entries to show (0 for all)")
	historyCmd.Flags().String("level", "", "Only entries of this level")
	historyCmd.Flags().String("component", "", "Only entries of this component (engine, supervisor, dns, ...)")
	historyCmd.Flags().String("session", "", `Only entries of this session id, or "last"`)
	historyCmd.Flags().Bool("sessions", false, "List recorded sessions instead of entries")
	historyCmd.Flags().Bool("json", false, "Print JSON lines")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.Journal.Path
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no journal at %s (enable [journal] or run with --journal): %w", path, err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := commandContext(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	if listSessions, _ := cmd.Flags().GetBool("sessions"); listSessions {
		sessions, err := j.Sessions(ctx, limit)
		if err != nil {
			return err
		}
		printSessions(out, sessions)
		return nil
	}

	filter := journal.Filter{Limit: limit}
	filter.Level, _ = cmd.Flags().GetString("level")
	filter.Component, _ = cmd.Flags().GetString("component")
	filter.Session, _ = cmd.Flags().GetString("session")

	if filter.Session == "last" {
		sessions, err := j.Sessions(ctx, 1)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return nil
		}
		filter.Session = sessions[0].ID
	}

	records, err := j.Query(ctx, filter)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printRecords(out, records, asJSON)
}

// printRecords writes records oldest first
func printRecords(w io.Writer, records []journal.Record, asJSON bool) error {
	for i := len(records) - 1; i >= 0; i-- {
		entry := recordEntry(records[i])

		if asJSON {
			data, err := entry.ToJSON()
			if err != nil {
				return fmt.Errorf("failed to marshal entry %d: %w", records[i].ID, err)
			}
			fmt.Fprintln(w, string(data))
			continue
		}
		fmt.Fprintln(w, entry.ToText())
	}
	return nil
}

func recordEntry(r journal.Record) *logger.Entry {
	var fields map[string]interface{}
	if r.Fields != "" {
		// Stored by the journal itself, a decode failure leaves fields empty
		_ = json.Unmarshal([]byte(r.Fields), &fields)
	}

	entry := logger.NewEntry(r.Level, r.Component, r.Message, fields)
	entry.Timestamp = r.Timestamp
	return entry
}

func printSessions(w io.Writer, sessions []journal.Session) {
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %s .. %s  %d entries\n", s.ID, s.Started, s.Ended, s.Entries)
	}
}
