/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/db"
	"github.com/friendsincode/bragi/internal/models"
)

var (
	resetForce           bool
	resetDeleteSnapshots bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database and optionally delete playback snapshots",
	Long: `Reset Bragi to a fresh state.

This command will:
- Drop the room settings and play history tables
- Re-create empty tables
- Optionally delete all persisted room snapshots

WARNING: This action is irreversible! All data will be lost.

Examples:
  # Interactive reset (will prompt for confirmation)
  bragi reset

  # Force reset without confirmation
  bragi reset --force

  # Reset and delete snapshots too
  bragi reset --force --delete-snapshots
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetDeleteSnapshots, "delete-snapshots", false, "Also delete persisted room snapshots")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println("\nThis will DELETE ALL room settings and play history.")
		if resetDeleteSnapshots {
			fmt.Println("Persisted room snapshots will be deleted as well.")
		}
		fmt.Print("Type 'yes' to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := database.Migrator().DropTable(&models.RoomSettings{}, &models.PlayRecord{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("recreate tables: %w", err)
	}
	logger.Info().Msg("database reset")

	if resetDeleteSnapshots {
		if err := os.RemoveAll(cfg.SnapshotDir); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		logger.Info().Str("dir", cfg.SnapshotDir).Msg("snapshots deleted")
	}

	return nil
}
