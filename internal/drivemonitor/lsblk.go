package drivemonitor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// lsblkPairPattern matches one KEY="value" pair in lsblk -P output. Values
// are captured inside their quotes, so volume labels containing spaces
// ("STAR TREK PICARD S1D3") survive parsing intact.
var lsblkPairPattern = regexp.MustCompile(`([A-Z]+)="([^"]*)"`)

// ReadLabel returns the volume label of the disc currently in device. A
// disc with no filesystem or no label is reported as an error; callers
// treat that the same as an empty label.
func ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	device = strings.TrimSpace(ExtractDevicePath(device))
	if device == "" {
		return "", fmt.Errorf("no device specified")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := exec.CommandContext(ctx, "lsblk", "-P", "-o", "LABEL,FSTYPE", device).Output()
	if err != nil {
		return "", fmt.Errorf("run lsblk: %w", err)
	}

	label, fstype := ParseLSBLKLabelFSType(string(output))
	if strings.TrimSpace(label) != "" && strings.TrimSpace(fstype) != "" {
		return label, nil
	}
	return "", fmt.Errorf("no disc label found")
}

// ParseLSBLKLabelFSType returns the LABEL/FSTYPE pair from the first line
// of lsblk -P output that carries any pairs.
func ParseLSBLKLabelFSType(output string) (string, string) {
	for _, line := range strings.Split(output, "\n") {
		pairs := lsblkPairPattern.FindAllStringSubmatch(line, -1)
		if len(pairs) == 0 {
			continue
		}
		fields := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			fields[pair[1]] = pair[2]
		}
		return fields["LABEL"], fields["FSTYPE"]
	}
	return "", ""
}
