// Package preflight runs the pre-flight checks the REST surface's
// detect_tools/validate_tool operations expose: whether the rip tool and
// ffmpeg binaries are present on PATH (or at a configured path) and, for
// directories, whether the daemon process can read/write/traverse them.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Requirement names one external binary the daemon depends on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a Requirement was found. Command holds the command
// or path that was checked.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement against PATH (or takes an
// absolute/relative path as-is) and reports whether it exists and is
// executable.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckSystemDeps evaluates the fixed set of binaries the rip/match pipeline
// needs: the rip tool and ffmpeg. Both the REST detect_tools handler and the
// CLI status command share this so the requirement list is defined once.
func CheckSystemDeps(ripToolPath, ffmpegPath string) []Status {
	return CheckBinaries([]Requirement{
		{Name: "rip_tool", Command: ripToolPath, Description: "Disc ripping (MakeMKV or compatible)"},
		{Name: "ffmpeg", Command: ffmpegPath, Description: "Chunked audio extraction for subtitle matching"},
	})
}

// ValidateTool resolves a single binary path and reports whether it is
// present, returning the resolved path and its reported version string.
// versionArgs defaults to {"--version"} when empty.
func ValidateTool(path string, versionArgs ...string) Status {
	status := Status{Name: path, Command: strings.TrimSpace(path)}
	if status.Command == "" {
		status.Detail = "empty path"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Command = resolved
	status.Available = true

	args := versionArgs
	if len(args) == 0 {
		args = []string{"--version"}
	}
	out, err := exec.Command(resolved, args...).CombinedOutput()
	if err != nil {
		status.Detail = fmt.Sprintf("found but version check failed: %v", err)
		return status
	}
	if line := firstLine(string(out)); line != "" {
		status.Detail = line
	}
	return status
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// CheckDirectoryAccess verifies that path exists and is readable, writable,
// and searchable by the current process.
func CheckDirectoryAccess(name, path string) Status {
	status := Status{Name: name, Command: path}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = fmt.Sprintf("%s: %v", path, err)
		return status
	}
	if !info.IsDir() {
		status.Detail = fmt.Sprintf("%s: not a directory", path)
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("%s: insufficient permissions: %v", path, err)
		return status
	}
	status.Available = true
	status.Detail = fmt.Sprintf("%s (read/write ok)", path)
	return status
}
