package communicator

import (
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

func (c *Communicator) inbound(conn *connection) {
	defer conn.wg.Done()

	for conn.ctx.Err() == nil {
		raw, err := c.port.Next()
		if err != nil {
			if conn.ctx.Err() != nil {
				return
			}
			c.transportError(conn, "read", err)
			return
		}
		if raw == nil {
			if !sleep(conn.ctx.Done(), c.cfg.PollInterval()) {
				return
			}
			continue
		}
		c.receive(raw)
	}
}

// receive handles one frame read from the port.
func (c *Communicator) receive(raw []byte) {
	f, err := codec.Parse(raw)
	if err != nil {
		return
	}
	c.idlePolls.Store(0)

	if !f.Valid {
		log.Debug().Stringer("channel", c.channel).Hex("frame", raw).Msg("checksum mismatch, frame dropped")
		c.count(metrics.NameChecksumMismatchTotal, f.Kind())
		return
	}

	kind := f.Kind()
	c.count(metrics.NameFrameRecvTotal, kind)

	if kind == message.KindAck {
		if len(f.Payload) == 0 {
			return
		}
		c.count(metrics.NameAckRecvTotal, kind)
		c.lastChecksum.Store(int32(f.Payload[0]))
		select {
		case c.ackWake <- struct{}{}:
		default:
		}
		return
	}

	c.queueDepth(queueAck, c.acks.push(f.Checksum))
	log.Debug().Stringer("channel", c.channel).Stringer("kind", kind).Hex("frame", raw).Msg("inbound")

	if kind == message.KindIDD && f.Len() > 3 {
		c.identify(f)
	}

	c.publish(TopicMessageReceived, &MessageEvent{Channel: c.channel, Frame: raw})
	if err := c.dispatcher.Dispatch(f); err != nil {
		log.Warn().Stringer("channel", c.channel).Stringer("kind", kind).Err(err).Msg("dispatch failed")
	}
}

// identify advances the identification state from a device response.
func (c *Communicator) identify(f *codec.Frame) {
	state := int32(f.Raw[3])
	c.iddState.Store(state + 1)

	switch state {
	case iddStateCapabilities:
		caps := decodeCapabilities(f.Raw)
		c.setDevice(&caps, nil)
		log.Info().Stringer("channel", c.channel).Stringer("capabilities", caps).Msg("device capabilities")
		c.publish(TopicCapabilitiesChanged, &CapabilitiesEvent{Channel: c.channel, Capabilities: caps})
	case iddStateName:
		name := decodeName(f.Raw)
		c.setDevice(nil, &name)
		log.Info().Stringer("channel", c.channel).Str("name", name).Msg("device name")
		c.publish(TopicNameChanged, &NameEvent{Channel: c.channel, Name: name})
		c.publish(TopicConnectionReady, &StateEvent{Channel: c.channel})
	}
}

// transportError logs err, waits the backoff and drops the connection for a reconnect.
func (c *Communicator) transportError(conn *connection, op string, err error) {
	log.Error().Stringer("channel", c.channel).Str("op", op).Err(err).Msg("transport error")
	c.countReason(metrics.NameTransportErrorTotal, op)
	if sleep(conn.ctx.Done(), c.cfg.ReconnectBackoff()) {
		c.disconnect(conn, false)
	}
}
