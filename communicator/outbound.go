package communicator

import (
	"context"
	"time"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

func (c *Communicator) outbound(conn *connection) {
	defer conn.wg.Done()

	for conn.ctx.Err() == nil {
		if err := c.outboundOnce(conn); err != nil {
			if conn.ctx.Err() != nil {
				return
			}
			c.transportError(conn, "write", err)
			return
		}
	}
}

// outboundOnce does one unit of outbound work: an acknowledgment, one delivery attempt of
// the head message, a cool-down tick or an identification request.
func (c *Communicator) outboundOnce(conn *connection) error {
	if chk, n, ok := c.acks.pop(); ok {
		c.idlePolls.Store(0)
		c.queueDepth(queueAck, n)
		if err := c.port.Send(codec.Encode(message.KindAck.Tag(), []byte{chk})); err != nil {
			return err
		}
		c.count(metrics.NameAckSentTotal, message.KindAck)
		return nil
	}

	if msg, ok := c.messages.peek(); ok {
		return c.deliver(conn, msg)
	}

	if c.iddCounter.Load() < 0 {
		if sleep(conn.ctx.Done(), c.cfg.PollInterval()) {
			c.iddCounter.Add(1)
		}
		return nil
	}

	if c.onDemand.Load() {
		log.Info().Stringer("channel", c.channel).Msg("on-demand queue delivered")
		c.disconnect(conn, true)
		return nil
	}

	if c.iddCounter.Load() == 0 {
		if state := c.iddState.Load(); state == iddStateCapabilities || state == iddStateName {
			c.requestIdentification(state)
			return nil
		}
	}

	sleep(conn.ctx.Done(), c.cfg.PollInterval())
	return nil
}

// deliver sends the head message once and waits for its acknowledgment.
func (c *Communicator) deliver(conn *connection, msg pendingMessage) error {
	conn.attempt++
	c.idlePolls.Store(0)

	frame := codec.Seal(msg.body)
	checksum := frame[0]
	c.lastChecksum.Store(-1)
	select {
	case <-c.ackWake:
	default:
	}

	start := time.Now()
	if err := c.port.Send(frame); err != nil {
		return err
	}
	c.count(metrics.NameFrameSentTotal, msg.kind)
	if conn.attempt > 1 {
		c.count(metrics.NameRetryTotal, msg.kind)
	}
	log.Debug().Stringer("channel", c.channel).Stringer("kind", msg.kind).Hex("frame", frame).
		Int("attempt", conn.attempt).Msg("outbound")

	confirmed := c.awaitAck(conn.ctx, checksum, msg.timeout)
	if conn.ctx.Err() != nil {
		return nil
	}

	remaining := 0
	if confirmed {
		_, remaining, _ = c.messages.pop()
		conn.attempt = 0
		c.lastChecksum.Store(-1)
		c.queueDepth(queueMessage, remaining)
		metrics.RecordStopwatchWithDimGroup(metrics.NameAckRoundTripMS, metrics.GroupComm, start, c.dims(msg.kind))
	}

	if conn.attempt >= c.cfg.MaxSendAttempts {
		conn.attempt = 0
		log.Error().Stringer("channel", c.channel).Stringer("kind", msg.kind).Hex("frame", frame).
			Int("attempts", c.cfg.MaxSendAttempts).Msg("message not confirmed, reconnecting")
		c.count(metrics.NameDeliveryExhausted, msg.kind)
		if sleep(conn.ctx.Done(), c.cfg.ReconnectBackoff()) {
			c.disconnect(conn, false)
		}
		return nil
	}

	switch msg.kind {
	case message.KindAck:
	case message.KindIDD:
		if confirmed {
			c.iddCounter.Store(-int32(c.cfg.IddCooldownTicks))
			return nil
		}
		if int(c.iddCounter.Add(1)) > c.cfg.PingFailureThreshold {
			log.Warn().Stringer("channel", c.channel).Int("unanswered", int(c.iddCounter.Load())).
				Msg("device not responding, reconnecting")
			c.count(metrics.NameLivenessFailureTotal, msg.kind)
			if sleep(conn.ctx.Done(), c.cfg.ReconnectBackoff()) {
				c.disconnect(conn, false)
			}
		}
	default:
		if confirmed {
			c.publish(TopicMessageSent, &MessageEvent{Channel: c.channel, Frame: frame, Remaining: remaining})
		}
	}
	return nil
}

// awaitAck waits until the inbound worker reports checksum or timeout passes.
func (c *Communicator) awaitAck(ctx context.Context, checksum byte, timeout time.Duration) bool {
	want := int32(checksum)
	if c.lastChecksum.Load() == want {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.ackWake:
			if c.lastChecksum.Load() == want {
				return true
			}
		case <-timer.C:
			return c.lastChecksum.Load() == want
		case <-ctx.Done():
			return false
		}
	}
}
