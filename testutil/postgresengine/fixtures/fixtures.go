// Package fixtures embeds the DDL used by the integration tests.
package fixtures

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Statements loads the named fixture file and splits it into single statements.
// Statement boundaries are semicolons at the end of a line, which the fixture
// files keep to by convention.
func Statements(name string) ([]string, error) {
	content, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", name, err)
	}

	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	if remainder := strings.TrimSpace(current.String()); remainder != "" {
		statements = append(statements, remainder)
	}

	return statements, nil
}
