package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport/usb"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the message kinds and their tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tKIND\tDELAY")
			for _, info := range message.All() {
				delay := "-"
				if info.Delay > 0 {
					delay = info.Delay.String()
				}
				fmt.Fprintf(w, "0x%02X\t%s\t%s\n", info.Kind.Tag(), info.Name, delay)
			}
			return w.Flush()
		},
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the serial ports of this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := usb.ListPorts()
			if err != nil {
				return fmt.Errorf("failed to list ports: %w", err)
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
