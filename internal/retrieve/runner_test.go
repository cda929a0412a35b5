package retrieve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orchestra-survey/harps-pipeline/internal/checkpoint"
	"github.com/orchestra-survey/harps-pipeline/internal/config"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
)

// mockSource implements DatasetSource for testing
type mockSource struct {
	datasets []string
}

func (m *mockSource) PendingDatasets(ctx context.Context) ([]string, error) {
	return m.datasets, nil
}

// mockArchive implements Archive for testing
type mockArchive struct {
	nextRequest int
	submitted   [][]string
	polled      []int
	fetched     []int
	submitErr   error
	pathsFor    func(requestNumber int) []string
}

func (m *mockArchive) Submit(ctx context.Context, datasets []string) (int, error) {
	if m.submitErr != nil {
		return 0, m.submitErr
	}
	m.nextRequest++
	m.submitted = append(m.submitted, datasets)
	return m.nextRequest, nil
}

func (m *mockArchive) AwaitComplete(ctx context.Context, requestNumber int, policy retry.Policy) error {
	m.polled = append(m.polled, requestNumber)
	return nil
}

func (m *mockArchive) FetchPaths(ctx context.Context, requestNumber int) ([]string, error) {
	m.fetched = append(m.fetched, requestNumber)
	if m.pathsFor != nil {
		return m.pathsFor(requestNumber), nil
	}
	return []string{fmt.Sprintf("/req%d/file.fits", requestNumber)}, nil
}

func testConfig(t *testing.T) config.RetrieveConfig {
	t.Helper()
	dir := t.TempDir()

	templatePath := filepath.Join(dir, "download_template.sh")
	template := "#!/bin/sh\nfor f in\n$$REMOTE_PATHS$$\ndo download $f; done\n"
	if err := os.WriteFile(templatePath, []byte(template), 0644); err != nil {
		t.Fatal(err)
	}

	return config.RetrieveConfig{
		BatchSize:          2,
		RequestNumbersPath: filepath.Join(dir, "request_numbers.json"),
		RemotePathsPath:    filepath.Join(dir, "paths.json"),
		TemplatePath:       templatePath,
		ScriptPath:         filepath.Join(dir, "download_spectra.sh"),
	}
}

func openAccumulator(t *testing.T, cfg config.RetrieveConfig, resume bool) *checkpoint.Accumulator {
	t.Helper()
	acc, err := checkpoint.Open(cfg.RequestNumbersPath, cfg.RemotePathsPath, resume)
	if err != nil {
		t.Fatalf("open accumulator: %v", err)
	}
	return acc
}

func TestRunnerSequentialFlow(t *testing.T) {
	cfg := testConfig(t)
	src := &mockSource{datasets: []string{"a", "b", "c", "d", "e"}}
	arc := &mockArchive{}
	acc := openAccumulator(t, cfg, false)

	r := NewRunner(cfg, src, arc, acc, retry.FixedN(0, 1))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// ceil(5/2) = 3 batches, submitted in order, each polled and fetched
	// before the next submission.
	if len(arc.submitted) != 3 {
		t.Fatalf("submitted %d batches, want 3", len(arc.submitted))
	}
	if got := arc.submitted[2]; len(got) != 1 || got[0] != "e" {
		t.Errorf("last batch = %v, want [e]", got)
	}
	if len(arc.polled) != 3 || len(arc.fetched) != 3 {
		t.Fatalf("polled %d fetched %d, want 3 each", len(arc.polled), len(arc.fetched))
	}

	if got := acc.Requests(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("accumulated requests = %v, want [1 2 3]", got)
	}
	if got := acc.Paths(); len(got) != 3 {
		t.Errorf("accumulated %d paths, want 3", len(got))
	}

	script, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		t.Fatalf("read rendered script: %v", err)
	}
	if !strings.Contains(string(script), "/req1/file.fits\n/req2/file.fits\n/req3/file.fits") {
		t.Errorf("rendered script missing substituted paths:\n%s", script)
	}
	if strings.Contains(string(script), "$$REMOTE_PATHS$$") {
		t.Error("placeholder left in rendered script")
	}
}

func TestRunnerSkipsLeadingBatches(t *testing.T) {
	cfg := testConfig(t)
	cfg.Skip = 2
	src := &mockSource{datasets: []string{"a", "b", "c", "d", "e"}}
	arc := &mockArchive{}
	acc := openAccumulator(t, cfg, false)

	r := NewRunner(cfg, src, arc, acc, retry.FixedN(0, 1))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(arc.submitted) != 1 {
		t.Fatalf("submitted %d batches, want 1 after skipping 2", len(arc.submitted))
	}
	if got := arc.submitted[0]; len(got) != 1 || got[0] != "e" {
		t.Errorf("submitted batch = %v, want [e]", got)
	}
}

func TestRunnerResumeDerivesSkipFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	src := &mockSource{datasets: []string{"a", "b", "c", "d", "e"}}

	// Seed a checkpoint as if the first two batches completed before a
	// crash.
	seed := openAccumulator(t, cfg, false)
	if err := seed.AppendRequest(1); err != nil {
		t.Fatal(err)
	}
	if err := seed.AppendPaths([]string{"/req1/file.fits"}); err != nil {
		t.Fatal(err)
	}
	if err := seed.AppendRequest(2); err != nil {
		t.Fatal(err)
	}
	if err := seed.AppendPaths([]string{"/req2/file.fits"}); err != nil {
		t.Fatal(err)
	}

	cfg.Resume = true
	arc := &mockArchive{nextRequest: 2}
	acc := openAccumulator(t, cfg, true)

	r := NewRunner(cfg, src, arc, acc, retry.FixedN(0, 1))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(arc.submitted) != 1 {
		t.Fatalf("submitted %d batches, want only the unfinished one", len(arc.submitted))
	}
	if got := acc.Paths(); len(got) != 3 {
		t.Errorf("accumulated %d paths, want 3 (2 resumed + 1 new)", len(got))
	}
}

func TestRunnerAbortsOnSubmitFailure(t *testing.T) {
	cfg := testConfig(t)
	src := &mockSource{datasets: []string{"a", "b", "c"}}
	arc := &mockArchive{submitErr: errors.New("archive returned 500")}
	acc := openAccumulator(t, cfg, false)

	r := NewRunner(cfg, src, arc, acc, retry.FixedN(0, 1))
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run should abort when submission fails")
	}

	if len(acc.Requests()) != 0 {
		t.Errorf("no request numbers should be recorded, got %v", acc.Requests())
	}
	if _, err := os.Stat(cfg.ScriptPath); !os.IsNotExist(err) {
		t.Error("script must not be rendered after an aborted run")
	}
}

func TestRenderScriptMissingPlaceholder(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.sh")
	if err := os.WriteFile(templatePath, []byte("#!/bin/sh\necho no placeholder\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := RenderScript(templatePath, filepath.Join(dir, "out.sh"), []string{"/a"})
	if err == nil {
		t.Fatal("RenderScript should fail when the template has no placeholder")
	}
}
