package ripcoord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"engram/internal/analyst"
	"engram/internal/logging"
)

const defaultScanTimeout = 120 * time.Second

// Coordinator wraps a rip tool binary (MakeMKV) as a scan/rip service.
// It satisfies analyst.Scanner for the identify stage
// and jobs.StageHandler (via Handler) for the rip stage.
type Coordinator struct {
	binary      string
	exec        Executor
	logger      *slog.Logger
	scanTimeout time.Duration
	ripcoordCfg Options
}

// Options bundles the rip-stage tunables.
type Options struct {
	FilePollInterval  time.Duration
	FileReadyTimeout  time.Duration
	StabilityChecks   int
	SizeTolerance     float64 // fraction, e.g. 0.01 for +/-1%
}

// DefaultOptions returns the stock readiness-protocol tunables.
func DefaultOptions() Options {
	return Options{
		FilePollInterval: 5 * time.Second,
		FileReadyTimeout: 600 * time.Second,
		StabilityChecks:  3,
		SizeTolerance:    0.01,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FilePollInterval <= 0 {
		o.FilePollInterval = d.FilePollInterval
	}
	if o.FileReadyTimeout <= 0 {
		o.FileReadyTimeout = d.FileReadyTimeout
	}
	if o.StabilityChecks <= 0 {
		o.StabilityChecks = d.StabilityChecks
	}
	if o.SizeTolerance <= 0 {
		o.SizeTolerance = d.SizeTolerance
	}
	return o
}

// New constructs a Coordinator. binary is the path to the rip tool
// executable (e.g. makemkvcon).
func New(binary string, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		binary:      binary,
		exec:        commandExecutor{},
		logger:      logger,
		scanTimeout: defaultScanTimeout,
		ripcoordCfg: opts.withDefaults(),
	}
}

// WithExecutor swaps the command executor, for tests.
func (c *Coordinator) WithExecutor(exec Executor) *Coordinator {
	if exec != nil {
		c.exec = exec
	}
	return c
}

// WithScanTimeout overrides the info-mode timeout.
func (c *Coordinator) WithScanTimeout(d time.Duration) *Coordinator {
	if d > 0 {
		c.scanTimeout = d
	}
	return c
}

// Scan reads a disc's title list in MakeMKV info mode (satisfies
// analyst.Scanner).
func (c *Coordinator) Scan(ctx context.Context, driveID string) ([]analyst.TitleInfo, error) {
	scanCtx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()

	device := normalizeDeviceArg(driveID)
	args := []string{"--robot", "-r", "info", device}

	var lines []string
	var msgBuf strings.Builder
	err := c.exec.Run(scanCtx, c.binary, args, func(line string) {
		lines = append(lines, line)
		if strings.HasPrefix(line, "MSG:") && parseMSGCode(line) >= 5000 {
			msgBuf.WriteString(parseMSGText(line))
			msgBuf.WriteString("; ")
		}
	})
	if err != nil {
		if errors.Is(scanCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("makemkv info scan timed out after %s", c.scanTimeout)
		}
		if msgBuf.Len() > 0 {
			return nil, fmt.Errorf("makemkv info scan failed: %s: %w", strings.TrimSuffix(msgBuf.String(), "; "), err)
		}
		return nil, fmt.Errorf("makemkv info scan failed: %w", err)
	}

	raw := parseInfoOutput(lines)
	if len(raw) == 0 {
		return nil, errors.New("makemkv reported no titles on the disc")
	}

	titles := make([]analyst.TitleInfo, 0, len(raw))
	for _, t := range raw {
		titles = append(titles, analyst.TitleInfo{
			Index:           t.index,
			DurationSeconds: t.duration,
			SizeBytes:       t.sizeByte,
			ChapterCount:    t.chapters,
			Name:            t.name,
		})
	}
	return titles, nil
}

func parseMSGCode(line string) int {
	payload := strings.TrimPrefix(line, "MSG:")
	comma := strings.IndexByte(payload, ',')
	if comma < 0 {
		return -1
	}
	code, err := strconv.Atoi(strings.TrimSpace(payload[:comma]))
	if err != nil {
		return -1
	}
	return code
}

func parseMSGText(line string) string {
	payload := strings.TrimPrefix(line, "MSG:")
	fieldIdx, inQuote, start := 0, false, 0
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if inQuote {
				continue
			}
			fieldIdx++
			if fieldIdx == 3 {
				start = i + 1
			}
			if fieldIdx == 4 {
				return trimMSGField(payload[start:i])
			}
		}
	}
	if fieldIdx >= 3 {
		return trimMSGField(payload[start:])
	}
	return ""
}

func trimMSGField(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}
