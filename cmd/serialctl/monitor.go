package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serialcomm "github.com/kubovy/serial-communication"
	"github.com/kubovy/serial-communication/capture"
	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/transport"
)

// printer writes every communicator event as one line.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(ch transport.Channel, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), ch, fmt.Sprintf(format, args...))
}

func (p *printer) OnConnecting(ch transport.Channel)      { p.printf(ch, "connecting") }
func (p *printer) OnConnect(ch transport.Channel)         { p.printf(ch, "connected") }
func (p *printer) OnConnectionReady(ch transport.Channel) { p.printf(ch, "ready") }
func (p *printer) OnDisconnect(ch transport.Channel)      { p.printf(ch, "disconnected") }
func (p *printer) OnMessagePrepare(transport.Channel)     {}

func (p *printer) OnMessageReceived(ch transport.Channel, frame []byte) {
	p.printf(ch, "RX %s", describe(frame))
}

func (p *printer) OnMessageSent(ch transport.Channel, frame []byte, remaining int) {
	p.printf(ch, "TX %s (%d queued)", describe(frame), remaining)
}

func (p *printer) OnDeviceCapabilitiesChanged(ch transport.Channel, caps communicator.Capabilities) {
	p.printf(ch, "capabilities %s", caps)
}

func (p *printer) OnDeviceNameChanged(ch transport.Channel, name string) {
	p.printf(ch, "name %q", name)
}

func describe(frame []byte) string {
	f, err := codec.Parse(frame)
	if err != nil {
		return "<empty>"
	}
	return fmt.Sprintf("%-16s % X", f.Kind(), frame)
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	var (
		capturePath string
		duration    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Connect and print every frame and state change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := serialcomm.New(opts.cfg)
			if err != nil {
				return err
			}
			defer app.Stop()

			c, err := app.NewCommunicator("")
			if err != nil {
				return err
			}
			if err := c.AddListener(&printer{out: cmd.OutOrStdout()}); err != nil {
				return err
			}

			if capturePath != "" {
				f, err := os.Create(capturePath)
				if err != nil {
					return fmt.Errorf("failed to create capture file: %w", err)
				}
				w := capture.NewWriter(f)
				defer func() {
					c.Shutdown()
					f.Close()
					fmt.Fprintf(cmd.OutOrStdout(), "%d frames captured to %s\n", w.Count(), capturePath)
				}()
				if err := c.AddListener(capture.NewRecorder(w)); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := c.Connect(nil); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&capturePath, "capture", "", "write captured frames to this file")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	return cmd
}
