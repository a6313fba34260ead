package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileAppender writes log lines to a file, rotating it by size or at a fixed hour.
type FileAppender struct {
	mu             sync.Mutex
	fileName       string
	fileSplitMB    int
	fileSplitHour  int
	fileFd         *os.File
	fileCreateTime time.Time
	lastCheck      time.Time
}

// NewFileAppender panics when the file cannot be opened, so a bad path fails at startup.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	a := &FileAppender{
		fileName:      cfg.LogPath,
		fileSplitMB:   cfg.FileSplitMB,
		fileSplitHour: cfg.FileSplitHour,
	}
	fd, created, err := openLogFile(a.fileName)
	if err != nil {
		panic(fmt.Errorf("open log file %s: %w", a.fileName, err))
	}
	a.fileFd, a.fileCreateTime = fd, created
	return a
}

func (a *FileAppender) Write(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.rotateLocked(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "log rotate %s: %v\n", a.fileName, err)
	}
	if a.fileFd == nil {
		return 0, os.ErrClosed
	}
	return a.fileFd.Write(buf)
}

func (a *FileAppender) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fileFd == nil {
		return nil
	}
	return a.fileFd.Sync()
}

func (a *FileAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fileFd == nil {
		return nil
	}
	err := a.fileFd.Close()
	a.fileFd = nil
	return err
}

// rotateLocked checks rotation at most once per second.
func (a *FileAppender) rotateLocked() error {
	now := time.Now()
	if a.fileFd == nil || now.Sub(a.lastCheck) < time.Second {
		return nil
	}
	a.lastCheck = now

	fd, created, err := rotateFile(a.fileName, a.fileSplitHour, a.fileSplitMB, a.fileFd, a.fileCreateTime, now)
	if err != nil {
		return err
	}
	a.fileFd, a.fileCreateTime = fd, created
	return nil
}
