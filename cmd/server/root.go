package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "myoutlet-admin",
	Short: "MyOutlet restaurant owner admin server",
	Long: `Serves the restaurant owner admin site. Browser sessions hold only a cookie;
backend access and refresh tokens stay on the server.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
}
