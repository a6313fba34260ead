package transport

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/kubovy/serial-communication/log"
	"github.com/kubovy/serial-communication/utils/pool"
)

// StreamReader pumps a byte stream through an Unwrapper on its own goroutine and queues
// the packets it completes for Next.
type StreamReader struct {
	channel Channel
	r       io.Reader
	bufs    *pool.Pool[*[]byte]
	unwrap  *Unwrapper
	packets chan []byte
	quit    chan struct{}
	done    chan struct{}
	err     atomic.Pointer[error]
	stopped atomic.Bool
}

// NewStreamReader starts reading r. queueSize bounds the packets waiting for Next; when
// the queue is full the reader blocks, which leaves the rest in the link's own buffer.
func NewStreamReader(channel Channel, r io.Reader, bufs *pool.Pool[*[]byte], queueSize int) *StreamReader {
	s := &StreamReader{
		channel: channel,
		r:       r,
		bufs:    bufs,
		unwrap:  NewUnwrapper(channel),
		packets: make(chan []byte, queueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *StreamReader) run() {
	defer close(s.done)

	bp := s.bufs.Get()
	defer s.bufs.Put(bp)
	buf := *bp

	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			for _, packet := range s.unwrap.Feed(buf[:n]) {
				select {
				case s.packets <- packet:
				case <-s.quit:
					return
				}
			}
		}
		if err != nil {
			if !s.stopped.Load() {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				s.err.Store(&err)
				log.Warn().Stringer("channel", s.channel).Err(err).Msg("stream read failed")
			}
			return
		}
	}
}

// Next returns a queued packet, the read error once the queue is drained, or nil, nil.
func (s *StreamReader) Next() ([]byte, error) {
	select {
	case p := <-s.packets:
		return p, nil
	default:
	}
	if errp := s.err.Load(); errp != nil {
		return nil, *errp
	}
	return nil, nil
}

// Stop marks the reader as stopping so the read error caused by closing the link is not
// reported, and waits for the goroutine. The caller must close the underlying stream
// first or Stop blocks until the next read returns.
func (s *StreamReader) Stop() {
	if s.stopped.Swap(true) {
		<-s.done
		return
	}
	close(s.quit)
	<-s.done
}
