package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/safety"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Args:  cobra.NoArgs,
	Short: "Validate target and run parameters without sending anything",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().String("target-ip", "", "target address, must be private (RFC1918/RFC4193/link-local)")
	validateCmd.Flags().IntSlice("ports", nil, "comma-separated destination ports")
	validateCmd.Flags().Int("threads", 0, "worker count, 1..100")
	validateCmd.Flags().Int("rate", 0, "per-worker packets per second")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitValidationFailure)
	}

	targetIP := net.ParseIP(cfg.Target.IP)
	if targetIP == nil {
		fmt.Fprintf(os.Stderr, "%q is not a valid IP address\n", cfg.Target.IP)
		os.Exit(exitValidationFailure)
	}

	validator := safety.New()
	runCfg := safety.RunConfig{
		TargetIP:   targetIP,
		Ports:      cfg.Target.Ports,
		Threads:    cfg.Attack.Threads,
		Rate:       cfg.Attack.PacketRate,
		MaxThreads: cfg.Safety.MaxThreads,
		MaxRate:    cfg.Safety.MaxPacketRate,
	}
	if err := validator.ValidateRunConfig(runCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitValidationFailure)
	}
	if err := cfg.Attack.ProtocolMix.Mix().Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitValidationFailure)
	}

	fmt.Print(validator.Report())
	fmt.Println("configuration is valid")
	return nil
}
