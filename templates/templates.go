package templates

import (
	"embed"
	"fmt"

	"github.com/estafette/estafette-ci-notifier/api"
)

//go:embed *.json *.form
var files embed.FS

// Load returns the built-in template stored at path
func Load(path string) (string, error) {
	data, err := files.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("Built-in template %v does not exist: %w", path, err)
	}
	return string(data), nil
}

// ForKind returns the built-in template for a kind of target
func ForKind(kind api.TargetKind) (string, error) {
	return Load(kind.TemplatePath())
}
