// Package activity computes the S_HK stellar activity index from reduced
// spectra and ingests the measurements through a reconnecting worker pool.
package activity

import (
	"errors"
	"math"
)

// Band definitions for the Mount Wilson style S-index, in Angstroms.
// Triangular bandpasses on the Ca II H & K line cores, rectangular
// continuum windows either side.
const (
	kLineCenter = 3933.664
	hLineCenter = 3968.470
	lineFWHM    = 1.09

	vContinuumCenter = 3901.070
	rContinuumCenter = 4001.070
	continuumWidth   = 20.0

	// alpha scales the band ratio onto the Mount Wilson system.
	alpha = 2.3

	// cLight is the speed of light in km/s.
	cLight = 299792.458
)

// ErrNoCoverage is returned when the spectrum does not span the Ca II
// H & K region after shifting to the stellar rest frame.
var ErrNoCoverage = errors.New("spectrum does not cover the Ca II H & K bands")

// SHKIndex measures the S_HK activity index and its photon-noise
// uncertainty. The wavelength grid is shifted to the stellar rest frame
// using the radial velocity rv (km/s) before the bands are integrated.
func SHKIndex(wavelength, flux []float64, rv float64) (float64, float64, error) {
	if len(wavelength) != len(flux) || len(wavelength) == 0 {
		return 0, 0, errors.New("wavelength and flux grids do not match")
	}

	shift := 1 + rv/cLight
	rest := make([]float64, len(wavelength))
	for i, w := range wavelength {
		rest[i] = w / shift
	}

	lo := vContinuumCenter - continuumWidth/2
	hi := rContinuumCenter + continuumWidth/2
	if rest[0] > lo || rest[len(rest)-1] < hi {
		return 0, 0, ErrNoCoverage
	}

	h, varH := bandFlux(rest, flux, hLineCenter, triangularWeight)
	k, varK := bandFlux(rest, flux, kLineCenter, triangularWeight)
	v, varV := bandFlux(rest, flux, vContinuumCenter, rectangularWeight)
	r, varR := bandFlux(rest, flux, rContinuumCenter, rectangularWeight)

	num := h + k
	den := r + v
	if den <= 0 || num < 0 {
		return 0, 0, ErrNoCoverage
	}

	s := alpha * num / den

	// Poisson statistics: variance ~ flux, propagated through the ratio.
	relNum := math.Sqrt(varH+varK) / num
	relDen := math.Sqrt(varV+varR) / den
	e := s * math.Sqrt(relNum*relNum+relDen*relDen)

	return s, e, nil
}

// bandFlux returns the weighted mean flux in a band and the variance of
// that mean assuming photon-noise statistics.
func bandFlux(wavelength, flux []float64, center float64, weight func(delta float64) float64) (float64, float64) {
	var sumW, sumWF, sumW2F float64
	for i, w := range wavelength {
		wt := weight(w - center)
		if wt <= 0 {
			continue
		}
		sumW += wt
		sumWF += wt * flux[i]
		sumW2F += wt * wt * math.Abs(flux[i])
	}
	if sumW == 0 {
		return 0, 0
	}
	mean := sumWF / sumW
	variance := sumW2F / (sumW * sumW)
	return mean, variance
}

func triangularWeight(delta float64) float64 {
	return 1 - math.Abs(delta)/lineFWHM
}

func rectangularWeight(delta float64) float64 {
	if math.Abs(delta) <= continuumWidth/2 {
		return 1
	}
	return 0
}
