package spectra

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/astrogo/fitsio"
)

// Spectrum is one reduced observation: a regular wavelength grid with
// flux values and the header fields the measurement pipeline needs.
type Spectrum struct {
	Filename   string
	DateObs    string
	Object     string
	Wavelength []float64
	Flux       []float64
}

// ReadSpectrum decodes the primary HDU of a reduced HARPS product. The
// wavelength grid is reconstructed from the linear WCS keywords:
// wavelength[i] = CRVAL1 + i*CDELT1. Any missing or mistyped header is a
// data-quality error; callers skip the file without retry.
func ReadSpectrum(r io.Reader, key string) (*Spectrum, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	f, err := fitsio.Open(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open FITS %s: %w", key, err)
	}
	defer f.Close()

	hdu := f.HDU(0)
	hdr := hdu.Header()

	naxis, err := headerInt(hdr, "NAXIS1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	crval, err := headerFloat(hdr, "CRVAL1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	cdelt, err := headerFloat(hdr, "CDELT1")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	dateObs, err := headerString(hdr, "DATE-OBS")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	object, err := headerString(hdr, "OBJECT")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", key)
	}

	// fitsio resizes the destination with SetLen, so the slice must hold
	// the full pixel count up front.
	data := make([]float32, naxis)
	if err := img.Read(&data); err != nil {
		return nil, fmt.Errorf("read flux from %s: %w", key, err)
	}
	if len(data) < naxis {
		return nil, fmt.Errorf("%s: flux array has %d samples, NAXIS1 says %d", key, len(data), naxis)
	}

	wavelength := make([]float64, naxis)
	flux := make([]float64, naxis)
	for i := 0; i < naxis; i++ {
		wavelength[i] = crval + float64(i)*cdelt
		flux[i] = float64(data[i])
	}

	return &Spectrum{
		Filename:   path.Base(key),
		DateObs:    dateObs,
		Object:     object,
		Wavelength: wavelength,
		Flux:       flux,
	}, nil
}

func headerInt(hdr *fitsio.Header, name string) (int, error) {
	card := hdr.Get(name)
	if card == nil {
		return 0, fmt.Errorf("missing header %s", name)
	}
	switch v := card.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("header %s has non-integer value %v", name, card.Value)
	}
}

func headerFloat(hdr *fitsio.Header, name string) (float64, error) {
	card := hdr.Get(name)
	if card == nil {
		return 0, fmt.Errorf("missing header %s", name)
	}
	switch v := card.Value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("header %s has non-numeric value %v", name, card.Value)
	}
}

func headerString(hdr *fitsio.Header, name string) (string, error) {
	card := hdr.Get(name)
	if card == nil {
		return "", fmt.Errorf("missing header %s", name)
	}
	v, ok := card.Value.(string)
	if !ok {
		return "", fmt.Errorf("header %s has non-string value %v", name, card.Value)
	}
	return v, nil
}
