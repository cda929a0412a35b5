// Package spectratest builds minimal valid FITS spectra for tests.
package spectratest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const blockSize = 2880

// Params describes the synthetic spectrum to build.
type Params struct {
	CRVAL1  float64
	CDELT1  float64
	DateObs string
	Object  string
	Flux    []float32
}

// Build renders a single-HDU FITS file: a primary image with BITPIX -32
// and the headers the measurement pipeline reads.
func Build(p Params) []byte {
	var hdr bytes.Buffer

	writeCard(&hdr, "SIMPLE", "T")
	writeCard(&hdr, "BITPIX", "-32")
	writeCard(&hdr, "NAXIS", "1")
	writeCard(&hdr, "NAXIS1", fmt.Sprintf("%d", len(p.Flux)))
	writeCard(&hdr, "CRVAL1", fmt.Sprintf("%.6f", p.CRVAL1))
	writeCard(&hdr, "CDELT1", fmt.Sprintf("%.6f", p.CDELT1))
	writeCard(&hdr, "DATE-OBS", fmt.Sprintf("'%s'", p.DateObs))
	writeCard(&hdr, "OBJECT", fmt.Sprintf("'%s'", p.Object))
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))
	pad(&hdr, ' ')

	var data bytes.Buffer
	for _, f := range p.Flux {
		_ = binary.Write(&data, binary.BigEndian, f)
	}
	pad(&data, 0)

	return append(hdr.Bytes(), data.Bytes()...)
}

// FlatSpectrum builds a spectrum with constant flux covering the Ca II
// H & K region.
func FlatSpectrum(flux float32) []byte {
	const n = 13500 // 3880..4015 A at 0.01 A steps
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = flux
	}
	return Build(Params{
		CRVAL1:  3880.0,
		CDELT1:  0.01,
		DateObs: "2004-10-25T03:46:12.23",
		Object:  "HD10700",
		Flux:    samples,
	})
}

func writeCard(buf *bytes.Buffer, name, value string) {
	card := fmt.Sprintf("%-8s= %20s", name, value)
	buf.WriteString(fmt.Sprintf("%-80s", card))
}

func pad(buf *bytes.Buffer, fill byte) {
	if rem := buf.Len() % blockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{fill}, blockSize-rem))
	}
}
