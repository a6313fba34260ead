package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleAppender writes log lines to stdout, or to any writer given to NewWriterAppender.
type ConsoleAppender struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{out: os.Stdout}
}

// NewWriterAppender is a ConsoleAppender over w. Tests use it to capture output.
func NewWriterAppender(w io.Writer) *ConsoleAppender {
	return &ConsoleAppender{out: w}
}

func (ca *ConsoleAppender) Write(buf []byte) (int, error) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return ca.out.Write(buf)
}

func (ca *ConsoleAppender) Refresh() error {
	return nil
}

func (ca *ConsoleAppender) Close() error {
	return nil
}
