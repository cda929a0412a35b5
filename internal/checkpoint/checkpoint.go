// Package checkpoint persists the retrieval pipeline's accumulated state
// so a crash mid-run does not lose batches the archive has already
// accepted.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrCheckpointExists is returned when snapshot files from a prior run
// are present and resume mode is off. Starting fresh would overwrite the
// recorded progress, so the pipeline refuses to start instead.
var ErrCheckpointExists = errors.New("checkpoint files already exist")

// Accumulator tracks every request number obtained and every remote path
// extracted so far, rewriting full snapshots to disk after each append.
type Accumulator struct {
	requestsPath string
	pathsPath    string

	requests []int
	paths    []string
}

// Open creates an accumulator over the two snapshot files. With resume
// false, pre-existing snapshots abort with ErrCheckpointExists; with
// resume true they are loaded and appended to.
func Open(requestsPath, pathsPath string, resume bool) (*Accumulator, error) {
	a := &Accumulator{
		requestsPath: requestsPath,
		pathsPath:    pathsPath,
	}

	if !resume {
		for _, path := range []string{requestsPath, pathsPath} {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrCheckpointExists, path)
			} else if !os.IsNotExist(err) {
				return nil, fmt.Errorf("stat checkpoint %s: %w", path, err)
			}
		}
		return a, nil
	}

	if err := loadJSON(requestsPath, &a.requests); err != nil {
		return nil, err
	}
	if err := loadJSON(pathsPath, &a.paths); err != nil {
		return nil, err
	}

	return a, nil
}

// Requests returns the accumulated request numbers.
func (a *Accumulator) Requests() []int {
	return a.requests
}

// Paths returns the accumulated remote paths.
func (a *Accumulator) Paths() []string {
	return a.paths
}

// CompletedBatches reports how many batches were submitted before a
// crash, derived from the persisted request numbers. Resume mode uses it
// as the skip count.
func (a *Accumulator) CompletedBatches() int {
	return len(a.requests)
}

// AppendRequest records a newly assigned request number and snapshots the
// full list immediately.
func (a *Accumulator) AppendRequest(n int) error {
	a.requests = append(a.requests, n)
	return saveJSON(a.requestsPath, a.requests)
}

// AppendPaths records the paths extracted for a completed batch and
// snapshots the full accumulated list immediately.
func (a *Accumulator) AppendPaths(paths []string) error {
	a.paths = append(a.paths, paths...)
	return saveJSON(a.pathsPath, a.paths)
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}
