package main

import (
	"fmt"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/config"
	"github.com/spf13/cobra"
)

// loadConfig reads configuration from cfgFile (defaults applied for any
// missing file) and overlays the run subcommand's own flags on top —
// explicit flags win over whatever the YAML file says.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", cfgFile, err)
	}

	overlayFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overlayFlags applies any explicitly-set run flags onto cfg, even when
// set to a zero value. Flags not given on the command line are left
// alone so the YAML file (or its defaults) stays in effect.
func overlayFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("target-ip") {
		cfg.Target.IP, _ = flags.GetString("target-ip")
	}
	if flags.Changed("ports") {
		ports, _ := flags.GetIntSlice("ports")
		cfg.Target.Ports = ports
	}
	if flags.Changed("threads") {
		cfg.Attack.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("rate") {
		cfg.Attack.PacketRate, _ = flags.GetInt("rate")
	}
	if flags.Changed("duration") {
		cfg.Attack.Duration, _ = flags.GetInt("duration")
	}
	if flags.Changed("dry-run") {
		cfg.Attack.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("interface") {
		cfg.Target.Interface, _ = flags.GetString("interface")
	}
}
