package main

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gimme",
	Short: "gimme adds two integers over HTTP",
	Long: `gimme serves an endpoint that adds the integer parameters op1 and op2.
Anything else gets a 400 "Gimme integers!" and a complete diagnostic in the
server's logs and diagnostic sinks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (yaml, json or toml). Defaults to config.* in ., configs/ or conf/")
}
