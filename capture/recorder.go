package capture

import (
	"time"

	"github.com/kubovy/serial-communication/communicator"
	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/network/message"
	"github.com/kubovy/serial-communication/network/transport"
)

// Recorder is a communicator.Listener writing every received and confirmed sent frame.
type Recorder struct {
	communicator.BaseListener

	w   *Writer
	now func() time.Time
}

func NewRecorder(w *Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

func (r *Recorder) OnMessageReceived(ch transport.Channel, frame []byte) {
	r.record(DirectionReceived, ch, frame)
}

func (r *Recorder) OnMessageSent(ch transport.Channel, frame []byte, _ int) {
	r.record(DirectionSent, ch, frame)
}

func (r *Recorder) record(dir Direction, ch transport.Channel, frame []byte) {
	kind := message.KindUnknown
	if len(frame) > 1 {
		kind = message.Lookup(frame[1])
	}
	rec := &Record{
		Time:      r.now(),
		Direction: dir,
		Channel:   ch,
		Kind:      kind,
		Frame:     frame,
	}
	if err := r.w.Write(rec); err != nil {
		log.Warn().Stringer("channel", ch).Err(err).Msg("capture failed")
	}
}
