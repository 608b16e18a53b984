package drivemonitor

import "testing"

func TestParseLSBLKLabelFSType(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantLabel string
		wantFS    string
	}{
		{
			name:      "simple label",
			output:    "LABEL=\"ARRESTED_DEV_S1D1\" FSTYPE=\"udf\"\n",
			wantLabel: "ARRESTED_DEV_S1D1",
			wantFS:    "udf",
		},
		{
			name:      "label with spaces",
			output:    "LABEL=\"STAR TREK PICARD S1D3\" FSTYPE=\"udf\"\n",
			wantLabel: "STAR TREK PICARD S1D3",
			wantFS:    "udf",
		},
		{
			name:      "empty label",
			output:    "LABEL=\"\" FSTYPE=\"\"\n",
			wantLabel: "",
			wantFS:    "",
		},
		{
			name:   "no pairs",
			output: "garbage\n",
		},
		{
			name:   "empty output",
			output: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, fstype := ParseLSBLKLabelFSType(tt.output)
			if label != tt.wantLabel || fstype != tt.wantFS {
				t.Errorf("ParseLSBLKLabelFSType() = (%q, %q), want (%q, %q)", label, fstype, tt.wantLabel, tt.wantFS)
			}
		})
	}
}
