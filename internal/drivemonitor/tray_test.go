package drivemonitor

import (
	"context"
	"testing"
)

func TestDriveStatusString(t *testing.T) {
	tests := map[DriveStatus]string{
		DriveStatusNoInfo:   "no_info",
		DriveStatusNoDisc:   "no_disc",
		DriveStatusTrayOpen: "tray_open",
		DriveStatusNotReady: "not_ready",
		DriveStatusDiscOK:   "disc_ok",
		DriveStatus(99):     "unknown(99)",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("DriveStatus(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}

func TestCheckDriveStatusRejectsBadPaths(t *testing.T) {
	for name, device := range map[string]string{
		"empty":       "",
		"nonexistent": "/dev/nonexistent_device_12345",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := CheckDriveStatus(device); err == nil {
				t.Fatalf("expected error for %s device path", name)
			}
		})
	}
}

func TestWaitForReadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := WaitForReady(ctx, "/dev/nonexistent_device_12345"); err == nil {
		t.Fatal("expected error for cancelled context or invalid device")
	}
}

func TestExtractDevicePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare path", "/dev/sr0", "/dev/sr0"},
		{"dev prefix", "dev:/dev/sr0", "/dev/sr0"},
		{"disc selector", "disc:0", ""},
		{"second disc selector", "disc:1", ""},
		{"padded", "  /dev/sr1  ", "/dev/sr1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDevicePath(tt.input); got != tt.want {
				t.Errorf("ExtractDevicePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
