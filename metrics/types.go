package metrics

// Policy tells a reporter how successive values of a metric combine.
type Policy int

const (
	Policy_None      Policy = iota
	Policy_Set              // last value wins
	Policy_Sum              // values are added
	Policy_Max              // highest value wins
	Policy_Stopwatch        // durations averaged over the reporting window
)

func (p Policy) String() string {
	switch p {
	case Policy_Set:
		return "set"
	case Policy_Sum:
		return "sum"
	case Policy_Max:
		return "max"
	case Policy_Stopwatch:
		return "stopwatch"
	default:
		return "none"
	}
}

// Value is a metric sample.
type Value float64

// Dimension holds the labels of a sample.
type Dimension map[string]string

// Metric groups.
const (
	GroupComm      = "comm"
	GroupTransport = "transport"
	GroupDispatch  = "dispatch"
)

// Metric names reported by the communicator and transports.
const (
	NameFrameSentTotal        = "frame_sent_total"
	NameFrameRecvTotal        = "frame_recv_total"
	NameAckSentTotal          = "ack_sent_total"
	NameAckRecvTotal          = "ack_recv_total"
	NameRetryTotal            = "retry_total"
	NameChecksumMismatchTotal = "checksum_mismatch_total"
	NameDeliveryExhausted     = "delivery_exhausted_total"
	NameLivenessFailureTotal  = "liveness_failure_total"
	NameReconnectTotal        = "reconnect_total"
	NameTransportErrorTotal   = "transport_error_total"
	NameQueueDepth            = "queue_depth"
	NameQueueDepthMax         = "queue_depth_max"
	NameAckRoundTripMS        = "ack_round_trip_ms"
	NameWrapperResyncTotal    = "wrapper_resync_total"
	NameDispatchDroppedTotal  = "dispatch_dropped_total"
	NamePoolCreateTotal       = "pool_create_total"
)

// Dimension keys.
const (
	DimKind     = "kind"
	DimChannel  = "channel"
	DimQueue    = "queue"
	DimReason   = "reason"
	DimPoolName = "poolname"
)
