package spectra

import (
	"bytes"
	"math"
	"testing"

	"github.com/orchestra-survey/harps-pipeline/internal/spectra/spectratest"
)

func TestReadSpectrum(t *testing.T) {
	flux := []float32{1, 2, 3, 4, 5}
	raw := spectratest.Build(spectratest.Params{
		CRVAL1:  3900.0,
		CDELT1:  0.5,
		DateObs: "2004-10-25T03:46:12.23",
		Object:  "HD10700",
		Flux:    flux,
	})

	spec, err := ReadSpectrum(bytes.NewReader(raw), "data/reduced/2004-10-25/HARPS.2004-10-25T03:46:12.23_s1d_A.fits")
	if err != nil {
		t.Fatalf("ReadSpectrum failed: %v", err)
	}

	if spec.Filename != "HARPS.2004-10-25T03:46:12.23_s1d_A.fits" {
		t.Errorf("Filename = %q", spec.Filename)
	}
	if spec.DateObs != "2004-10-25T03:46:12.23" {
		t.Errorf("DateObs = %q", spec.DateObs)
	}
	if spec.Object != "HD10700" {
		t.Errorf("Object = %q", spec.Object)
	}

	if len(spec.Wavelength) != len(flux) || len(spec.Flux) != len(flux) {
		t.Fatalf("grid lengths %d/%d, want %d", len(spec.Wavelength), len(spec.Flux), len(flux))
	}
	if math.Abs(spec.Wavelength[0]-3900.0) > 1e-9 {
		t.Errorf("Wavelength[0] = %v, want 3900", spec.Wavelength[0])
	}
	if math.Abs(spec.Wavelength[4]-3902.0) > 1e-9 {
		t.Errorf("Wavelength[4] = %v, want 3902", spec.Wavelength[4])
	}
	for i, f := range flux {
		if spec.Flux[i] != float64(f) {
			t.Errorf("Flux[%d] = %v, want %v", i, spec.Flux[i], f)
		}
	}
}

func TestReadSpectrumFullSizeProduct(t *testing.T) {
	raw := spectratest.FlatSpectrum(100)

	spec, err := ReadSpectrum(bytes.NewReader(raw), "data/reduced/2004-10-25/HARPS.2004-10-25_s1d_A.fits")
	if err != nil {
		t.Fatalf("ReadSpectrum failed: %v", err)
	}

	if len(spec.Flux) != 13500 {
		t.Fatalf("got %d flux samples, want 13500", len(spec.Flux))
	}
	if math.Abs(spec.Wavelength[0]-3880.0) > 1e-9 {
		t.Errorf("Wavelength[0] = %v, want 3880", spec.Wavelength[0])
	}
	if last := spec.Wavelength[len(spec.Wavelength)-1]; math.Abs(last-4014.99) > 1e-6 {
		t.Errorf("Wavelength[last] = %v, want 4014.99", last)
	}
	for i, f := range spec.Flux {
		if f != 100 {
			t.Fatalf("Flux[%d] = %v, want 100", i, f)
		}
	}
}

func TestReadSpectrumRejectsGarbage(t *testing.T) {
	if _, err := ReadSpectrum(bytes.NewReader([]byte("not a FITS file")), "bad.fits"); err == nil {
		t.Fatal("ReadSpectrum should fail on non-FITS input")
	}
}
