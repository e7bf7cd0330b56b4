package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "routerflood",
	Short: "Educational, safety-gated packet flood generator",
	Long: `router-flood drives a configurable worker pool that emits raw UDP, TCP,
ICMP, and ARP traffic (IPv4 and IPv6) at a single target, strictly
confined to private address space. It exists to exercise and teach
network-stack resilience, not to attack anything you don't own.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./routerflood.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listInterfacesCmd)
	rootCmd.AddCommand(validateCmd)
}

// Exit codes, per the external interface contract: 0 normal completion,
// 1 validation failure, 2 runtime error, 130 interrupted by SIGINT.
const (
	exitOK                = 0
	exitValidationFailure = 1
	exitRuntimeError      = 2
	exitInterrupted       = 130
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitValidationFailure)
	}
}
