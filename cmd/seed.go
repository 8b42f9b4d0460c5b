/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/phrasebook-app/apiserver/config"
	"github.com/phrasebook-app/apiserver/internal/db"
	"github.com/phrasebook-app/apiserver/internal/seed"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo accounts and messages",
	Long: `Creates the kevin (admin), aaron and chrisu demo accounts with their
idiom sentences. Accounts that already exist are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		return seed.Load(
			cmd.Context(),
			store.NewUserRepository(conn),
			store.NewMessageRepository(conn),
			seed.Accounts(),
			logger,
		)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
