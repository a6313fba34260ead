package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	serialcomm "github.com/kubovy/serial-communication"
	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/network/message"
)

// parseTag accepts a kind name ("io") or a tag number ("0x10", "16").
func parseTag(s string) (byte, error) {
	if kind, err := message.Parse(s); err == nil {
		return kind.Tag(), nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown message kind %q", s)
	}
	return byte(v), nil
}

// parsePayload reads one byte per argument, decimal or 0x-prefixed hex.
func parsePayload(args []string) ([]byte, error) {
	payload := make([]byte, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(strings.TrimSpace(arg), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid payload byte %q", arg)
		}
		payload = append(payload, byte(v))
	}
	return payload, nil
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <kind> [byte...]",
		Short: "Send one message and wait for the device to confirm it",
		Example: `  serialctl send io 0x03 0x81
  serialctl send 0x12 1 2 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTag(args[0])
			if err != nil {
				return err
			}
			payload, err := parsePayload(args[1:])
			if err != nil {
				return err
			}

			app, err := serialcomm.New(opts.cfg)
			if err != nil {
				return err
			}
			defer app.Stop()

			c, err := app.NewCommunicator("")
			if err != nil {
				return err
			}
			sent := make(chan *communicator.MessageEvent, 1)
			if err := c.Subscribe(communicator.TopicMessageSent, func(p any) {
				select {
				case sent <- p.(*communicator.MessageEvent):
				default:
				}
			}); err != nil {
				return err
			}

			if err := c.SendBytes(tag, payload...); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}

			select {
			case e := <-sent:
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s.\n", describe(e.Frame))
				return nil
			case <-time.After(timeout):
				return fmt.Errorf("message not confirmed within %s", timeout)
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the confirmation")
	return cmd
}
