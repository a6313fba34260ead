package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// rotateFile moves the current file aside and opens a fresh one when a size or time limit
// is reached. Otherwise the old descriptor is returned unchanged.
func rotateFile(filePath string, splitHour, splitMB int, oldFD *os.File, created, now time.Time) (*os.File, time.Time, error) {
	fi, err := os.Stat(filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// moved away by someone else
		_ = oldFD.Close()
		return openLogFile(filePath)
	case err != nil:
		return oldFD, created, fmt.Errorf("stat file: %w", err)
	}

	if !shouldRotateByTime(created, now, splitHour) && !shouldRotateBySize(fi.Size(), splitMB) {
		return oldFD, created, nil
	}

	if err := oldFD.Close(); err != nil {
		return nil, time.Time{}, fmt.Errorf("close old file: %w", err)
	}
	backup, err := backupFileName(filePath, now)
	if err != nil {
		return nil, time.Time{}, err
	}
	if err := os.Rename(filePath, backup); err != nil {
		return nil, time.Time{}, fmt.Errorf("rename file: %w", err)
	}
	return openLogFile(filePath)
}

func shouldRotateByTime(created, now time.Time, splitHour int) bool {
	if splitHour == 0 {
		return false
	}
	if now.Sub(created) >= 24*time.Hour {
		return true
	}
	if created.YearDay() == now.YearDay() {
		return created.Hour() < splitHour && now.Hour() >= splitHour
	}
	return now.Hour() >= splitHour
}

func shouldRotateBySize(size int64, splitMB int) bool {
	return splitMB > 0 && size >= int64(splitMB)<<20
}

func backupFileName(filePath string, now time.Time) (string, error) {
	ext := filepath.Ext(filePath)
	base := strings.TrimSuffix(filePath, ext)
	for i := 0; i < 5; i++ {
		name := base + ext + "." + now.Add(time.Duration(i)*time.Second).Format("20060102-150405")
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
	}
	return "", errors.New("cannot generate unique backup filename")
}

func openLogFile(filePath string) (*os.File, time.Time, error) {
	if dir := filepath.Dir(filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return nil, time.Time{}, fmt.Errorf("create directory: %w", err)
		}
	}
	fd, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open file: %w", err)
	}
	fi, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, time.Time{}, fmt.Errorf("stat new file: %w", err)
	}
	return fd, fi.ModTime(), nil
}
