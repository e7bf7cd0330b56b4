// Package iface resolves the network interface a run transmits from,
// using github.com/vishvananda/netlink instead of stdlib net.Interfaces
// so hardware address and per-family assigned addresses come from one
// consistent source.
package iface

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Resolved describes the interface a Builder and Layer2Channel need:
// its name, hardware address, and assigned IPv4/IPv6 addresses (either
// may be nil if the interface lacks that family).
type Resolved struct {
	Name       string
	HardwareMAC net.HardwareAddr
	IPv4       net.IP
	IPv6       net.IP
}

// Resolve picks the interface to use: by name if name is non-empty,
// otherwise the first link that is up, not loopback, and carries at
// least one assigned address.
func Resolve(name string) (*Resolved, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("iface: list links: %w", err)
	}

	for _, link := range links {
		attrs := link.Attrs()
		if name != "" {
			if attrs.Name != name {
				continue
			}
			return resolveAddrs(link, attrs)
		}
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if attrs.Flags&net.FlagUp == 0 {
			continue
		}
		r, err := resolveAddrs(link, attrs)
		if err != nil || (r.IPv4 == nil && r.IPv6 == nil) {
			continue
		}
		return r, nil
	}

	if name != "" {
		return nil, fmt.Errorf("iface: interface %q not found", name)
	}
	return nil, fmt.Errorf("iface: no suitable up, non-loopback interface with an assigned address found")
}

// List enumerates every interface with its assigned addresses, backing
// the list-interfaces CLI subcommand.
func List() ([]Resolved, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("iface: list links: %w", err)
	}
	out := make([]Resolved, 0, len(links))
	for _, link := range links {
		r, err := resolveAddrs(link, link.Attrs())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func resolveAddrs(link netlink.Link, attrs *netlink.LinkAttrs) (*Resolved, error) {
	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("iface: list addresses for %q: %w", attrs.Name, err)
	}

	r := &Resolved{Name: attrs.Name, HardwareMAC: attrs.HardwareAddr}
	for _, a := range addrs {
		ip := a.IP
		if ip.To4() != nil {
			if r.IPv4 == nil {
				r.IPv4 = ip
			}
		} else if r.IPv6 == nil {
			r.IPv6 = ip
		}
	}
	return r, nil
}
