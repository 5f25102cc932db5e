package utils

import "testing"

func TestFormatMegabytes(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0.00MB"},
		{1024 * 1024, "1.00MB"},
		{300 * 1024 * 1024, "300.00MB"},
		{1536 * 1024, "1.50MB"},
		{5000, "0.00MB"},
	}

	for _, tt := range tests {
		if got := FormatMegabytes(tt.size); got != tt.want {
			t.Errorf("FormatMegabytes(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
