package logstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

const maxLineBytes = 1024 * 1024

// lastLines returns up to limit trailing lines and the end offset.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if limit == 0 {
			continue
		}
		if len(ring) == limit {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	return ring, end, nil
}

// readFrom returns complete lines written after offset. A file shorter than
// offset was rotated and is read from the start.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Leave a partial trailing line for the next read.
			return lines, offset, nil
		}
		if err != nil {
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
}
