package ripcoord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"engram/internal/analyst"
)

// SimDisc is one scripted disc registered with the Simulator: the layout a
// simulated info scan reports and the files a simulated extraction writes.
type SimDisc struct {
	VolumeLabel string
	ContentType string // "TV", "MOVIE", or "" for label-driven default
}

// simTitle is one synthesized track of a scripted disc.
type simTitle struct {
	index    int
	duration int
	size     int64
	chapters int
	name     string
}

// Simulator is an Executor that impersonates the rip tool for drives
// registered through Prepare, backing the simulate_insert testing hook:
// scans report a synthesized title list shaped by the disc's declared
// content type, and extraction writes a small real file into the staging
// directory so the file-readiness protocol runs unmodified.
type Simulator struct {
	mu    sync.Mutex
	discs map[string]SimDisc
}

// NewSimulator constructs an empty Simulator.
func NewSimulator() *Simulator {
	return &Simulator{discs: make(map[string]SimDisc)}
}

// Prepare registers a scripted disc for a drive. Subsequent scans and rips
// against that drive are served by the simulator instead of the real tool.
func (s *Simulator) Prepare(driveID, volumeLabel, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discs[driveID] = SimDisc{VolumeLabel: volumeLabel, ContentType: strings.ToUpper(strings.TrimSpace(contentType))}
}

// Has reports whether a scripted disc is registered for the drive.
func (s *Simulator) Has(driveID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.discs[driveID]
	return ok
}

// Forget drops a drive's scripted disc, returning the drive to the real tool.
func (s *Simulator) Forget(driveID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.discs, driveID)
}

func (s *Simulator) disc(driveID string) (SimDisc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	disc, ok := s.discs[driveID]
	return disc, ok
}

// layout synthesizes a title list for a scripted disc. A TV disc gets eight
// episode-length titles plus two short extras; a movie disc gets one
// feature-length title plus two short extras. Sizes are kept tiny so the
// simulated extraction finishes quickly.
func layout(disc SimDisc) []simTitle {
	if disc.ContentType == "TV" {
		titles := make([]simTitle, 0, 10)
		for i := 0; i < 8; i++ {
			titles = append(titles, simTitle{
				index:    i,
				duration: 1290 + i*17,
				size:     512 * 1024,
				chapters: 5,
				name:     fmt.Sprintf("%s_t%02d.mkv", disc.VolumeLabel, i),
			})
		}
		titles = append(titles,
			simTitle{index: 8, duration: 420, size: 128 * 1024, chapters: 1, name: fmt.Sprintf("%s_t08.mkv", disc.VolumeLabel)},
			simTitle{index: 9, duration: 150, size: 64 * 1024, chapters: 1, name: fmt.Sprintf("%s_t09.mkv", disc.VolumeLabel)},
		)
		return titles
	}
	return []simTitle{
		{index: 0, duration: 6600, size: 1024 * 1024, chapters: 24, name: disc.VolumeLabel + "_t00.mkv"},
		{index: 1, duration: 540, size: 128 * 1024, chapters: 2, name: disc.VolumeLabel + "_t01.mkv"},
		{index: 2, duration: 300, size: 64 * 1024, chapters: 1, name: disc.VolumeLabel + "_t02.mkv"},
	}
}

// Run impersonates the rip tool's robot mode for a registered drive. The
// args shapes mirror what Coordinator passes to a real Executor: info mode
// emits TINFO records, mkv mode writes the selected title's output file.
func (s *Simulator) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	mode, device, titleArg, outDir := parseRobotArgs(args)
	disc, ok := s.disc(stripDevicePrefix(device))
	if !ok {
		return fmt.Errorf("no simulated disc registered for %s", device)
	}

	switch mode {
	case "info":
		for _, t := range layout(disc) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			emit(onStdout, fmt.Sprintf("TINFO:%d,2,0,\"%s\"", t.index, t.name))
			emit(onStdout, fmt.Sprintf("TINFO:%d,8,0,\"%d\"", t.index, t.chapters))
			emit(onStdout, fmt.Sprintf("TINFO:%d,9,0,\"%s\"", t.index, hms(t.duration)))
			emit(onStdout, fmt.Sprintf("TINFO:%d,10,0,\"%d\"", t.index, t.size))
		}
		return nil

	case "mkv":
		index, err := strconv.Atoi(titleArg)
		if err != nil {
			return fmt.Errorf("simulated rip: bad title index %q", titleArg)
		}
		for _, t := range layout(disc) {
			if t.index != index {
				continue
			}
			dest := filepath.Join(outDir, fmt.Sprintf("%s_t%02d.mkv", sanitizePrefix(disc.VolumeLabel), index))
			emit(onStdout, fmt.Sprintf("PRGV:0,%d,%d", t.size, t.size))
			if err := writeSimFile(dest, t.size); err != nil {
				return fmt.Errorf("simulated rip: %w", err)
			}
			emit(onStdout, fmt.Sprintf("PRGV:%d,%d,%d", t.size, t.size, t.size))
			return nil
		}
		return fmt.Errorf("simulated rip: no title %d on disc %s", index, disc.VolumeLabel)

	default:
		return fmt.Errorf("simulated rip tool: unsupported mode %q", mode)
	}
}

// parseRobotArgs picks the mode, device, title index, and output directory
// out of the two arg shapes Coordinator uses:
//
//	--robot -r info <device>
//	--robot mkv <device> <title> <outdir>
func parseRobotArgs(args []string) (mode, device, title, outDir string) {
	var rest []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) == 0 {
		return "", "", "", ""
	}
	mode = rest[0]
	if len(rest) > 1 {
		device = rest[1]
	}
	if len(rest) > 2 {
		title = rest[2]
	}
	if len(rest) > 3 {
		outDir = rest[3]
	}
	return mode, device, title, outDir
}

func stripDevicePrefix(device string) string {
	for _, prefix := range []string{"dev:", "disc:"} {
		if strings.HasPrefix(strings.ToLower(device), prefix) {
			return device[len(prefix):]
		}
	}
	return device
}

func sanitizePrefix(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "title"
	}
	return b.String()
}

func hms(seconds int) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func emit(onStdout func(string), line string) {
	if onStdout != nil {
		onStdout(line)
	}
}

func writeSimFile(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			return err
		}
	}
	return nil
}

// Router fronts a real Coordinator and a simulated one, dispatching by
// whether the drive has a scripted disc registered. It satisfies both
// analyst.Scanner and RipService, so the identify and rip stages stay
// unaware of simulation.
type Router struct {
	Real *Coordinator
	Sim  *Coordinator
	Reg  *Simulator
}

// NewRouter builds a Router over a real coordinator and a simulator
// registry. The simulated coordinator runs the same readiness protocol with
// a much shorter poll cadence, since its files land fully written.
func NewRouter(real *Coordinator, sim *Simulator) *Router {
	opts := real.ripcoordCfg
	opts.FilePollInterval = 200 * time.Millisecond
	opts.StabilityChecks = 2
	simulated := New(real.binary, opts, real.logger).WithExecutor(sim)
	return &Router{Real: real, Sim: simulated, Reg: sim}
}

func (r *Router) pick(driveID string) *Coordinator {
	if r.Reg != nil && r.Reg.Has(driveID) {
		return r.Sim
	}
	return r.Real
}

// Scan reads a drive's title list from whichever coordinator owns it.
func (r *Router) Scan(ctx context.Context, driveID string) ([]analyst.TitleInfo, error) {
	return r.pick(driveID).Scan(ctx, driveID)
}

// Rip extracts titles from whichever coordinator owns the drive.
func (r *Router) Rip(ctx context.Context, driveID string, selected []SelectedTitle, stagingDir string) (<-chan RipEvent, error) {
	return r.pick(driveID).Rip(ctx, driveID, selected, stagingDir)
}
