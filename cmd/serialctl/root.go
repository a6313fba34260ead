package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubovy/serial-communication/config"
)

type rootOptions struct {
	cfgFile   string
	transport string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "serialctl",
		Short: "Talk to a microcontroller over serial, Bluetooth or a TCP bridge",
		Long: `serialctl connects to a device speaking the checksum/acknowledge frame protocol,
monitors its traffic and sends single messages to it. Transports, logging and metrics
are set up from a TOML configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfgFile == "" {
				opts.cfg = config.Default()
			} else {
				cfg, err := config.Load(opts.cfgFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				opts.cfg = cfg
			}
			if opts.transport != "" {
				opts.cfg.Transport = opts.transport
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVarP(&opts.transport, "transport", "t", "", "tag of the transport plugin to use")

	root.AddCommand(
		newMonitorCmd(opts),
		newSendCmd(opts),
		newKindsCmd(),
		newPortsCmd(),
		newVersionCmd(),
	)
	return root
}
