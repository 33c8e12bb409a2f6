package cmd

import (
	"fmt"
	"log"
	"os"

	"surroundio/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "surroundio",
	Short: "SurroundIO is an album submission service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting SurroundIO server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
