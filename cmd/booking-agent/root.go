package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "booking-agent",
	Short: "Acme Dental AI booking agent",
	Long: `Acme Dental AI booking agent - a conversational receptionist.

The agent books, reschedules, and cancels dental check-up appointments
through the Calendly API and answers patient questions from the clinic
FAQ. It serves a JSON chat API plus health and Prometheus metrics
endpoints.`,
}

// Execute runs the root command. Called once from main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (YAML; defaults and ACME_DENTAL_* env vars apply regardless)")
}
