package spectra

import (
	"path"
	"strings"
)

// ExpectedKey reconstructs the key a reduced spectrum would have for an
// ingested filename. Filenames encode the observation date:
// HARPS.<date>T<time>..., and the matching one-dimensional product lives
// under data/reduced/<date>/ with any product suffix (e.g. _bis_G2_A)
// replaced by _s1d_A. Returns false for filenames that do not follow the
// naming scheme.
func ExpectedKey(filename string) (string, bool) {
	rest, ok := strings.CutPrefix(filename, "HARPS.")
	if !ok {
		return "", false
	}
	date, _, ok := strings.Cut(rest, "T")
	if !ok {
		return "", false
	}

	base := filename
	if i := strings.Index(base, "_bis_"); i >= 0 {
		base = base[:i]
	} else {
		base = strings.TrimSuffix(base, ".fits")
	}

	return path.Join("data", "reduced", date, base+reducedSuffix), true
}

// FilterProcessed removes candidates whose expected key matches an
// already-ingested filename. The result is the candidate set minus the
// reconstructed keys; it never exceeds the candidate count.
func FilterProcessed(candidates []string, ingested []string) []string {
	done := make(map[string]struct{}, len(ingested))
	for _, fn := range ingested {
		if key, ok := ExpectedKey(fn); ok {
			done[key] = struct{}{}
		}
	}

	var remaining []string
	for _, key := range candidates {
		if _, processed := done[key]; !processed {
			remaining = append(remaining, key)
		}
	}
	return remaining
}
