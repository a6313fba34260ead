package log

// LogAppender is an output destination for finished log lines.
type LogAppender interface {
	Write(buf []byte) (n int, err error)

	// Refresh flushes buffered output.
	Refresh() error

	Close() error
}
