package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxRecordSize bounds a single record; frames are at most a few hundred bytes.
const maxRecordSize = 64 << 10

// Writer appends records to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
	n   int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one length-delimited record.
func (w *Writer) Write(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	body := r.marshal(nil)
	w.buf = protowire.AppendBytes(w.buf[:0], body)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}
	w.n++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Reader reads records written by a Writer.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, io.EOF at a clean end of the stream and
// io.ErrUnexpectedEOF for a truncated record.
func (r *Reader) Next() (*Record, error) {
	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture: read length: %w", err)
	}
	if size > maxRecordSize {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrMalformedRecord, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	rec := &Record{}
	if err := rec.unmarshal(body); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadAll returns every record until the end of the stream.
func ReadAll(r io.Reader) ([]*Record, error) {
	var records []*Record
	reader := NewReader(r)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
