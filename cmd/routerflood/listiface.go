package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/iface"
)

var listInterfacesCmd = &cobra.Command{
	Use:   "list-interfaces",
	Args:  cobra.NoArgs,
	Short: "Enumerate network interfaces and their assigned addresses",
	RunE:  listInterfaces,
}

func listInterfaces(cmd *cobra.Command, args []string) error {
	interfaces, err := iface.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitRuntimeError)
	}

	for _, i := range interfaces {
		fmt.Printf("%-16s mac=%-17s ipv4=%-15s ipv6=%s\n", i.Name, hwString(i), ipString(i.IPv4), ipString(i.IPv6))
	}
	return nil
}

func hwString(r iface.Resolved) string {
	if r.HardwareMAC == nil {
		return "-"
	}
	return r.HardwareMAC.String()
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "-"
	}
	return ip.String()
}
