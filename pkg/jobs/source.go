package jobs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowpipe/pkg/models"
)

// Items returns the items of a job. A source file is read relative to dir, one item per
// non-blank line.
func Items(def *models.JobDefinition, dir string) ([]string, error) {
	if def.Source.File == "" {
		return def.Source.Items, nil
	}

	path := def.Source.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	f, err := os.Open(path) // #nosec G304 -- source files are chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open source of job %s: %w", def.ID, err)
	}
	defer f.Close()

	var items []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		items = append(items, line)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read source of job %s: %w", def.ID, err)
	}

	return items, nil
}
