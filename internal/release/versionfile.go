package release

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/webextract/relgate/internal/model"
)

// ErrVersionNotDeclared is returned when the version file contains no
// recognizable version assignment.
var ErrVersionNotDeclared = errors.New("no version declared in version file")

// versionLinePattern matches a TOML-style version assignment such as
// `version = "1.2.3"`. The first match in the file wins.
var versionLinePattern = regexp.MustCompile(`^\s*version\s*=\s*"([^"]*)"`)

// DeclaredVersion extracts the project's declared version from its version
// file (pyproject.toml by convention).
func DeclaredVersion(path string) (model.Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Version{}, fmt.Errorf("failed to open version file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := versionLinePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		v, err := model.ParseVersion(m[1])
		if err != nil {
			return model.Version{}, fmt.Errorf("version file %s declares %q: %w", path, m[1], err)
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return model.Version{}, fmt.Errorf("failed to read version file: %w", err)
	}

	return model.Version{}, fmt.Errorf("%w: %s", ErrVersionNotDeclared, path)
}
