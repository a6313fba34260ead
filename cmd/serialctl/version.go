package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubovy/serial-communication/runtime"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the serialctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "serialctl %s\n", runtime.String())
			return nil
		},
	}
}
