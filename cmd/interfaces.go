// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/system"
	"github.com/we-are-mono/utunguard/types"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces and the one DNS changes apply to",
	Long: `Enumerates interfaces the same way the supervisor does before each DNS
change. The first physical interface with an IPv4 address and a gateway is
the active one and is marked with "*".`,
	Args: cobra.NoArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
	interfacesCmd.Flags().Bool("json", false, "Print JSON")
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	_, closeLogging, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLogging()

	resolver := system.NewResolver(
		system.NewDefaultInterfaceSource(system.NewDefaultCommandRunner()),
		logger.With(logger.Field{Key: "component", Value: "netif"}))

	ifaces, err := resolver.Interfaces(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printInterfacesJSON(cmd.OutOrStdout(), ifaces)
	}
	printInterfaces(cmd.OutOrStdout(), ifaces)
	return nil
}

type interfacesReport struct {
	Active     string                   `json:"active"`
	Interfaces []types.NetworkInterface `json:"interfaces"`
}

func printInterfacesJSON(w io.Writer, ifaces []types.NetworkInterface) error {
	active, _ := system.Select(ifaces)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(interfacesReport{Active: active, Interfaces: ifaces})
}

func printInterfaces(w io.Writer, ifaces []types.NetworkInterface) {
	active, ok := system.Select(ifaces)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tDEVICE\tSERVICE\tPHYSICAL\tIPV4\tGATEWAY")

	marked := false
	for _, iface := range ifaces {
		mark := ""
		if ok && !marked && iface.Eligible() && iface.FriendlyName == active {
			mark = "*"
			marked = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mark,
			iface.Name,
			dash(iface.FriendlyName),
			yesNo(iface.Physical),
			dash(joinIPs(iface.IPv4)),
			dash(ipString(iface.Gateway)))
	}
	tw.Flush()

	if !ok {
		fmt.Fprintln(w, "\nNo eligible interface: DNS changes would be skipped.")
	}
}

func joinIPs(ips []net.IP) string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return strings.Join(out, ",")
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
