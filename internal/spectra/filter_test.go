package spectra

import (
	"testing"
)

func TestExpectedKey(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		ok       bool
	}{
		{
			"HARPS.2004-10-25T03:46:12.23_bis_G2_A.fits",
			"data/reduced/2004-10-25/HARPS.2004-10-25T03:46:12.23_s1d_A.fits",
			true,
		},
		{
			"HARPS.2011-01-01T00:00:00.00_bis_K5_A.fits",
			"data/reduced/2011-01-01/HARPS.2011-01-01T00:00:00.00_s1d_A.fits",
			true,
		},
		{
			// No product suffix: the date is still recoverable.
			"HARPS.2004-10-25T03:46:12.23.fits",
			"data/reduced/2004-10-25/HARPS.2004-10-25T03:46:12.23_s1d_A.fits",
			true,
		},
		{"UVES.2004-10-25T03:46:12.23_bis_G2_A.fits", "", false},
		{"HARPS.no-timestamp.fits", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := ExpectedKey(tt.filename)
			if ok != tt.ok {
				t.Fatalf("ExpectedKey(%q) ok = %v, want %v", tt.filename, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExpectedKey(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestFilterProcessed(t *testing.T) {
	candidates := []string{
		"data/reduced/2004-10-25/HARPS.2004-10-25T03:46:12.23_s1d_A.fits",
		"data/reduced/2004-10-26/HARPS.2004-10-26T04:00:00.00_s1d_A.fits",
		"data/reduced/2004-10-27/HARPS.2004-10-27T05:00:00.00_s1d_A.fits",
	}
	ingested := []string{
		"HARPS.2004-10-25T03:46:12.23_bis_G2_A.fits",
		// Ingested file with no local candidate: must not add anything.
		"HARPS.1999-01-01T00:00:00.00_bis_G2_A.fits",
		// Malformed filename: ignored.
		"junk.fits",
	}

	got := FilterProcessed(candidates, ingested)
	if len(got) != 2 {
		t.Fatalf("FilterProcessed kept %d candidates %v, want 2", len(got), got)
	}
	if got[0] != candidates[1] || got[1] != candidates[2] {
		t.Errorf("FilterProcessed = %v, order not preserved", got)
	}
	if len(got) > len(candidates) {
		t.Error("filtered set exceeds candidate count")
	}
}

func TestFilterProcessedEmptyIngested(t *testing.T) {
	candidates := []string{"data/reduced/2004-10-25/HARPS.2004-10-25T03:46:12.23_s1d_A.fits"}
	got := FilterProcessed(candidates, nil)
	if len(got) != 1 {
		t.Fatalf("FilterProcessed = %v, want unchanged candidates", got)
	}
}
