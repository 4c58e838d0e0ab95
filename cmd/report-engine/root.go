package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "report-engine",
	Short: "Report job queue and scheduling engine",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
}
