package retrieve

import (
	"fmt"
	"os"
	"strings"
)

// pathsPlaceholder is the single substitution token expected in the
// operator's download script template.
const pathsPlaceholder = "$$REMOTE_PATHS$$"

// RenderScript reads the template, substitutes the accumulated remote
// paths one per line, and writes the result as an executable script. No
// validation of the paths themselves; they are emitted as the archive
// produced them.
func RenderScript(templatePath, outPath string, paths []string) error {
	contents, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("read template %s: %w", templatePath, err)
	}

	if !strings.Contains(string(contents), pathsPlaceholder) {
		return fmt.Errorf("template %s has no %s placeholder", templatePath, pathsPlaceholder)
	}

	rendered := strings.ReplaceAll(string(contents), pathsPlaceholder, strings.Join(paths, "\n"))

	if err := os.WriteFile(outPath, []byte(rendered), 0755); err != nil {
		return fmt.Errorf("write script %s: %w", outPath, err)
	}
	return nil
}
