// Package logs reads the daemon's log file for the CLI tail command.
package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// TailOptions controls one tail read. A negative Offset means "the last Limit
// lines of the file"; a non-negative one reads forward from that byte
// position, which is how follow mode picks up where the previous read ended.
type TailOptions struct {
	Offset int64
	Limit  int
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

const maxLineBytes = 1 << 20

// Tail reads log lines according to opts. A missing file is not an error; it
// reads as an empty log at offset zero. When Wait is positive and no new
// lines exist yet, Tail polls until lines arrive, the wait elapses, or the
// context is cancelled.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Offset < 0 {
		lines, offset, err := readLast(path, opts.Limit)
		if err != nil {
			return TailResult{}, err
		}
		result := TailResult{Lines: lines, Offset: offset}
		if len(lines) == 0 && opts.Wait > 0 {
			return waitForLines(ctx, path, offset, opts.Wait)
		}
		return result, nil
	}

	lines, offset, err := readForward(path, opts.Offset)
	if err != nil {
		return TailResult{}, err
	}
	if len(lines) == 0 && opts.Wait > 0 {
		return waitForLines(ctx, path, opts.Offset, opts.Wait)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// readLast returns the final limit lines and the end-of-file offset.
func readLast(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	ring := make([]string, limit)
	count, next := 0, 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(next+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

// readForward returns all complete lines from offset onward and the new
// offset.
func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	// The file was rotated or truncated underneath us; start over.
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return lines, end, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		lines, end, err := readForward(path, offset)
		if err != nil {
			return TailResult{}, err
		}
		if len(lines) > 0 {
			return TailResult{Lines: lines, Offset: end}, nil
		}
		if time.Now().After(deadline) {
			return TailResult{Offset: offset}, nil
		}
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
	}
}
