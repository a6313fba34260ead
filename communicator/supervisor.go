package communicator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/transport"
)

// connection is the lifetime of one open port. Its workers exit when ctx is cancelled.
type connection struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// attempt counts sends of the current head message, owned by the outbound worker.
	attempt int
}

// Connect asks the supervisor to open desc, or the remembered descriptor when desc is nil.
// It returns once the request is accepted; the connected event follows when the port is
// open. Connecting to a different device while connected drops the current connection.
func (c *Communicator) Connect(desc transport.Descriptor) error {
	c.onDemand.Store(false)
	return c.connect(desc, nil)
}

// connect implements Connect. first, when set, is queued right after the queues are
// cleared so an on-demand connection never starts with an empty queue.
func (c *Communicator) connect(desc transport.Descriptor, first *pendingMessage) error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return ErrShutdown
	}
	if desc == nil {
		desc = c.desc
	}
	if desc == nil {
		c.mu.Unlock()
		return ErrNoDescriptor
	}
	if err := c.port.CanConnect(desc); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	state := c.State()
	if state != StateDisconnected && transport.SameDescriptor(desc, c.desc) {
		c.mu.Unlock()
		return fmt.Errorf("%w: already %s to %s", ErrCannotConnect, strings.ToLower(state.String()), desc)
	}

	dropped := state == StateConnected
	if state != StateDisconnected {
		c.teardownLocked()
	}
	c.requested = true
	c.messages.clear()
	c.acks.clear()
	if first != nil {
		c.queueDepth(queueMessage, c.messages.push(*first))
	}
	c.desc = desc
	c.state.Store(int32(StateConnecting))
	c.connectSeq++
	seq := c.connectSeq
	c.announced = false
	if !c.supervising {
		c.supervising = true
		go c.supervise()
	}
	c.mu.Unlock()

	log.Info().Stringer("channel", c.channel).Stringer("device", desc).Bool("onDemand", c.onDemand.Load()).Msg("connecting")
	if dropped {
		c.publish(TopicDisconnected, &StateEvent{Channel: c.channel})
	}
	c.publish(TopicConnecting, &StateEvent{Channel: c.channel})

	// The supervisor opens only after listeners have seen the connecting event.
	c.mu.Lock()
	if c.connectSeq == seq {
		c.announced = true
	}
	c.mu.Unlock()
	c.signal()
	return nil
}

// Disconnect closes the connection and stays disconnected until the next Connect or
// on-demand send.
func (c *Communicator) Disconnect() {
	c.disconnect(nil, true)
}

// Shutdown disconnects for good and waits, bounded by the shutdown timeout, for the
// supervisor and the workers to exit.
func (c *Communicator) Shutdown() {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return
	}
	c.shut = true
	c.mu.Unlock()

	c.disconnect(nil, true)

	c.mu.Lock()
	supervising, prev := c.supervising, c.prevConn
	c.mu.Unlock()

	close(c.quit)
	if supervising {
		select {
		case <-c.done:
		case <-time.After(c.cfg.ShutdownTimeout()):
			log.Warn().Stringer("channel", c.channel).Msg("supervisor did not stop in time")
		}
	}
	if prev != nil {
		c.waitWorkers(prev)
	}
	log.Info().Stringer("channel", c.channel).Msg("communicator shut down")
}

// disconnect tears the connection down. from is the connection a worker is reporting on;
// a stale report is ignored. Involuntary disconnects reconnect when a connection was
// requested, except on-demand connections, which end.
func (c *Communicator) disconnect(from *connection, voluntary bool) {
	c.mu.Lock()
	if from != nil && c.conn != from {
		c.mu.Unlock()
		return
	}
	// A failed on-demand connection is given up, not reconnected.
	if c.onDemand.Load() {
		voluntary = true
	}
	if voluntary {
		c.requested = false
		c.onDemand.Store(false)
	}
	if c.State() == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	reconnect := !voluntary && c.requested && !c.shut
	desc := c.desc
	c.mu.Unlock()

	log.Info().Stringer("channel", c.channel).Stringer("device", desc).Bool("voluntary", voluntary).Msg("disconnected")
	c.publish(TopicDisconnected, &StateEvent{Channel: c.channel})

	if reconnect {
		metrics.IncrCounterWithDimGroup(metrics.NameReconnectTotal, metrics.GroupComm, 1, c.dims())
		if err := c.connect(desc, nil); err != nil {
			log.Warn().Stringer("channel", c.channel).Err(err).Msg("reconnect not started")
		}
	}
}

// teardownLocked cancels the workers and closes the port. c.mu must be held.
func (c *Communicator) teardownLocked() {
	c.state.Store(int32(StateDisconnecting))
	c.messages.clear()
	c.acks.clear()
	if c.conn != nil {
		c.conn.cancel()
		c.prevConn = c.conn
		c.conn = nil
	}
	if err := c.port.Close(); err != nil {
		log.Error().Stringer("channel", c.channel).Err(err).Msg("closing port failed")
	}
	c.state.Store(int32(StateDisconnected))
}

func (c *Communicator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// supervise runs from the first Connect until Shutdown.
func (c *Communicator) supervise() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.PollInterval())
	defer ticker.Stop()

	for {
		tick := false
		select {
		case <-c.quit:
			return
		case <-c.wake:
		case <-ticker.C:
			tick = true
		}

		switch c.State() {
		case StateConnecting:
			c.open()
		case StateConnected:
			if tick {
				c.idleTick()
			}
		}
	}
}

// open makes one connection attempt for the requested descriptor.
func (c *Communicator) open() {
	c.mu.Lock()
	if c.State() != StateConnecting || !c.announced {
		c.mu.Unlock()
		return
	}
	desc, prev, seq := c.desc, c.prevConn, c.connectSeq
	c.prevConn = nil
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
		c.waitWorkers(prev)
	}
	if err := c.port.Close(); err != nil {
		log.Warn().Stringer("channel", c.channel).Err(err).Msg("cleaning up port failed")
	}

	if err := c.port.Open(desc); err != nil {
		log.Error().Stringer("channel", c.channel).Stringer("device", desc).Err(err).Msg("open failed")
		c.countReason(metrics.NameTransportErrorTotal, "open")
		if !sleep(c.quit, c.cfg.ReconnectBackoff()) {
			return
		}
		c.mu.Lock()
		current := c.connectSeq == seq
		c.mu.Unlock()
		if current {
			c.disconnect(nil, false)
		}
		return
	}

	c.mu.Lock()
	if c.State() != StateConnecting || c.connectSeq != seq || c.shut {
		// Disconnected or redirected while opening.
		_ = c.port.Close()
		c.mu.Unlock()
		return
	}
	if c.onDemand.Load() {
		c.iddState.Store(iddStateSettled)
	} else {
		c.iddState.Store(iddStateCapabilities)
	}
	c.iddCounter.Store(0)
	c.idlePolls.Store(0)
	c.lastChecksum.Store(-1)

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{ctx: ctx, cancel: cancel}
	conn.wg.Add(2)
	c.conn = conn
	c.state.Store(int32(StateConnected))
	c.mu.Unlock()

	log.Info().Stringer("channel", c.channel).Stringer("device", desc).Msg("connected")
	c.publish(TopicConnected, &StateEvent{Channel: c.channel})

	go c.inbound(conn)
	go c.outbound(conn)
}

// idleTick pings the device after IdlePingPolls quiet polls.
func (c *Communicator) idleTick() {
	n := c.idlePolls.Add(1)
	if c.onDemand.Load() || int(n) < c.cfg.IdlePingPolls {
		return
	}
	c.idlePolls.Store(0)
	if c.messages.len() == 0 && c.acks.len() == 0 {
		log.Debug().Stringer("channel", c.channel).Msg("idle, pinging device")
		if err := c.Ping(); err != nil {
			log.Warn().Stringer("channel", c.channel).Err(err).Msg("ping not queued")
		}
	}
}

// waitWorkers waits for the workers of conn, at most the shutdown timeout.
func (c *Communicator) waitWorkers(conn *connection) bool {
	done := make(chan struct{})
	go func() {
		conn.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(c.cfg.ShutdownTimeout()):
		log.Warn().Stringer("channel", c.channel).Msg("workers did not stop in time")
		return false
	}
}

// sleep waits d and reports false if stop closed first.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
