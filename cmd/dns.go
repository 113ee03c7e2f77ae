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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/utunguard/daemon/logger"
	"github.com/we-are-mono/utunguard/system"
	"github.com/we-are-mono/utunguard/validation"
)

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Change the active network service's DNS by hand",
	Long: `Manual DNS control, e.g. to recover after utunguard was killed before it
could restore DNS.`,
}

var dnsSetCmd = &cobra.Command{
	Use:   "set <address>",
	Short: `Point the active service at <address> ("empty" clears manual servers)`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDNSChange(cmd, args[0])
	},
}

var dnsRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Apply the configured restore value (default: empty)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDNSChange(cmd, "")
	},
}

var dnsProbeCmd = &cobra.Command{
	Use:   "probe [server]",
	Short: "Query the probe domain against a resolver (default: the activation address)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDNSProbe,
}

func init() {
	rootCmd.AddCommand(dnsCmd)
	dnsCmd.AddCommand(dnsSetCmd)
	dnsCmd.AddCommand(dnsRestoreCmd)
	dnsCmd.AddCommand(dnsProbeCmd)
	dnsSetCmd.Flags().String("service", "", "Network service to change instead of the detected one")
	dnsRestoreCmd.Flags().String("service", "", "Network service to change instead of the detected one")
	dnsProbeCmd.Flags().String("domain", "", "Domain to query (default dns.probe_domain, else example.com)")
}

// fixedService reports an interface resolved up front
type fixedService string

func (s fixedService) Active(ctx context.Context) (string, bool) {
	return string(s), s != ""
}

// runDNSChange sets value on the active service. An empty value means the
// configured restore value.
func runDNSChange(cmd *cobra.Command, value string) error {
	cfg, closeLogging, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLogging()

	if value == "" {
		value = cfg.DNS.Restore
	}
	if err := validation.ValidateDNSValue(value); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.DNS.CommandTimeout.Std())
	defer cancel()

	runner := system.NewDefaultCommandRunner()

	service, _ := cmd.Flags().GetString("service")
	if service == "" {
		resolver := system.NewResolver(system.NewDefaultInterfaceSource(runner),
			logger.With(logger.Field{Key: "component", Value: "netif"}))

		var ok bool
		if service, ok = resolver.Active(ctx); !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "No eligible interface, DNS unchanged")
			return nil
		}
	}

	controller := system.NewDNSController(fixedService(service), runner,
		logger.With(logger.Field{Key: "component", Value: "dns"}))
	if err := controller.Set(ctx, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "DNS for %s set to %s\n", service, value)
	return nil
}

func runDNSProbe(cmd *cobra.Command, args []string) error {
	cfg, closeLogging, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLogging()

	server := cfg.DNS.Activate
	if len(args) == 1 {
		server = args[0]
	}
	if err := validation.ValidateIP(server); err != nil {
		return err
	}

	domain, _ := cmd.Flags().GetString("domain")
	if domain == "" {
		domain = cfg.DNS.ProbeDomain
	}
	if domain == "" {
		domain = "example.com"
	}

	prober := system.NewDNSProber(domain, cfg.DNS.ProbeTimeout.Std())
	if err := prober.Probe(commandContext(cmd), server); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s answers %s\n", server, domain)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
