package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicmap",
		Short: "Civic report map server",
		Long: `civicmap serves the interactive civic report map: report markers,
a weighted heat overlay and the session API the map page drives.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML); CIVICMAP_* env vars override it")

	addServeCmd(rootCmd)
	addReportsCmd(rootCmd)
	addHeatCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
