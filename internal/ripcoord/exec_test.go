package ripcoord

import "testing"

func TestNormalizeDeviceArg(t *testing.T) {
	tests := []struct {
		device string
		want   string
	}{
		{"", "disc:0"},
		{"/dev/sr0", "dev:/dev/sr0"},
		{"dev:/dev/sr1", "dev:/dev/sr1"},
		{"disc:2", "disc:2"},
	}
	for _, tt := range tests {
		if got := normalizeDeviceArg(tt.device); got != tt.want {
			t.Errorf("normalizeDeviceArg(%q) = %q, want %q", tt.device, got, tt.want)
		}
	}
}
