package ripcoord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"engram/internal/logging"
)

// RipEventType discriminates the four events rip() can emit.
type RipEventType string

const (
	EventTitleStarted  RipEventType = "title_started"
	EventBytesWritten  RipEventType = "bytes_written"
	EventTitleFinished RipEventType = "title_finished"
	EventFatalError    RipEventType = "fatal_error"
)

// RipEvent is one message on the stream rip() produces. TitleIndex is -1 for
// a FatalError that isn't scoped to a single title (the rip tool itself
// failed to start, for instance).
type RipEvent struct {
	Type         RipEventType
	TitleIndex   int
	ExpectedSize int64
	Bytes        int64
	OutputPath   string
	Message      string
}

// SelectedTitle is one title queued for extraction.
type SelectedTitle struct {
	Index        int
	ExpectedSize int64
}

// Rip extracts the selected titles from a drive into stagingDir, one at a
// time, streaming progress and completion events. The returned channel is
// closed when every title has been attempted. The caller must drain it to
// avoid leaking the ripping goroutine.
func (c *Coordinator) Rip(ctx context.Context, driveID string, selected []SelectedTitle, stagingDir string) (<-chan RipEvent, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("no titles selected for ripping")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	events := make(chan RipEvent, 16)
	go c.runRip(ctx, driveID, selected, stagingDir, events)
	return events, nil
}

func (c *Coordinator) runRip(ctx context.Context, driveID string, selected []SelectedTitle, stagingDir string, events chan<- RipEvent) {
	defer close(events)

	device := normalizeDeviceArg(driveID)
	finished := 0

	for _, title := range selected {
		if ctx.Err() != nil {
			return
		}
		events <- RipEvent{Type: EventTitleStarted, TitleIndex: title.Index, ExpectedSize: title.ExpectedSize}

		titleDir := filepath.Join(stagingDir, fmt.Sprintf("title_%02d", title.Index))
		if err := os.MkdirAll(titleDir, 0o755); err != nil {
			events <- RipEvent{Type: EventFatalError, TitleIndex: title.Index, Message: err.Error()}
			continue
		}

		pollCtx, cancelPoll := context.WithCancel(ctx)
		pollDone := make(chan struct{})
		go c.pollFileReadiness(pollCtx, titleDir, title, events, pollDone)

		args := []string{"--robot", "mkv", device, strconv.Itoa(title.Index), titleDir}
		runErr := c.exec.Run(ctx, c.binary, args, func(line string) {
			if strings.HasPrefix(line, "MSG:") && parseMSGCode(line) >= 5000 {
				c.logger.Warn("makemkv disc error", logging.String("msg", parseMSGText(line)), logging.Int("title_index", title.Index))
			}
		})
		cancelPoll()
		<-pollDone

		if runErr != nil {
			events <- RipEvent{Type: EventFatalError, TitleIndex: title.Index, Message: runErr.Error()}
			continue
		}

		outputPath, ready, err := c.waitForReady(ctx, titleDir, title)
		if err != nil {
			events <- RipEvent{Type: EventFatalError, TitleIndex: title.Index, Message: err.Error()}
			continue
		}
		if !ready {
			events <- RipEvent{Type: EventFatalError, TitleIndex: title.Index, Message: "output file never stabilized within the ready timeout"}
			continue
		}
		events <- RipEvent{Type: EventTitleFinished, TitleIndex: title.Index, OutputPath: outputPath}
		finished++
	}

	if finished == 0 {
		events <- RipEvent{Type: EventFatalError, TitleIndex: -1, Message: "no titles finished ripping"}
	}
}

// pollFileReadiness emits BytesWritten as the candidate output file grows,
// independent of MakeMKV's own exit status: MakeMKV can report success while
// the OS is still flushing buffered writes.
func (c *Coordinator) pollFileReadiness(ctx context.Context, titleDir string, title SelectedTitle, events chan<- RipEvent, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.ripcoordCfg.FilePollInterval)
	defer ticker.Stop()
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			size, ok := largestFileSize(titleDir)
			if !ok || size == lastSize {
				continue
			}
			lastSize = size
			events <- RipEvent{Type: EventBytesWritten, TitleIndex: title.Index, Bytes: size}
		}
	}
}

// waitForReady polls the title's output directory until the largest file's
// size has been unchanged for StabilityChecks consecutive polls and is
// within SizeTolerance of the expected size, or until FileReadyTimeout
// elapses.
func (c *Coordinator) waitForReady(ctx context.Context, titleDir string, title SelectedTitle) (string, bool, error) {
	opts := c.ripcoordCfg
	deadline := time.Now().Add(opts.FileReadyTimeout)
	ticker := time.NewTicker(opts.FilePollInterval)
	defer ticker.Stop()

	var lastSize int64 = -1
	stableCount := 0

	for {
		path, size, ok := largestFile(titleDir)
		if ok {
			if size == lastSize {
				stableCount++
			} else {
				stableCount = 1
				lastSize = size
			}
			withinTolerance := title.ExpectedSize <= 0 || closeEnough(size, title.ExpectedSize, opts.SizeTolerance)
			if stableCount >= opts.StabilityChecks && withinTolerance {
				return path, true, nil
			}
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func closeEnough(actual, expected int64, tolerance float64) bool {
	if expected <= 0 {
		return true
	}
	diff := float64(actual-expected) / float64(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func largestFileSize(dir string) (int64, bool) {
	_, size, ok := largestFile(dir)
	return size, ok
}

func largestFile(dir string) (string, int64, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false
	}
	var bestPath string
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".mkv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			bestSize = info.Size()
			bestPath = filepath.Join(dir, entry.Name())
		}
	}
	if bestPath == "" {
		return "", 0, false
	}
	return bestPath, bestSize, true
}
