package communicator

import (
	"github.com/kubovy/serial-communication/metrics"
	"github.com/kubovy/serial-communication/network/message"
)

const (
	queueMessage = "message"
	queueAck     = "ack"
)

func (c *Communicator) dims(kind ...message.Kind) metrics.Dimension {
	d := metrics.Dimension{metrics.DimChannel: c.channel.String()}
	if len(kind) > 0 {
		d[metrics.DimKind] = kind[0].String()
	}
	return d
}

func (c *Communicator) count(name string, kind message.Kind) {
	metrics.IncrCounterWithDimGroup(name, metrics.GroupComm, 1, c.dims(kind))
}

func (c *Communicator) countReason(name, reason string) {
	d := c.dims()
	d[metrics.DimReason] = reason
	metrics.IncrCounterWithDimGroup(name, metrics.GroupComm, 1, d)
}

func (c *Communicator) queueDepth(queue string, n int) {
	d := c.dims()
	d[metrics.DimQueue] = queue
	metrics.UpdateGaugeWithDimGroup(metrics.NameQueueDepth, metrics.GroupComm, metrics.Value(n), d)
	metrics.UpdateMaxGaugeWithDimGroup(metrics.NameQueueDepthMax, metrics.GroupComm, metrics.Value(n), d)
}
