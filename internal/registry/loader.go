// Package registry discovers GGUF model files on disk and exposes them as
// a model registry for session loading.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// quantRe matches the quantization suffix conventionally embedded in GGUF
// filenames, e.g. "llama-3.2-1b-q4_k_m.gguf".
var quantRe = regexp.MustCompile(`(?i)(?:^|[-._])(i?q[0-9]+(?:_[a-z0-9]+)*|f16|f32|bf16)(?:[-._]|$)`)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. Quant and Family are best-effort guesses from the
// filename and may be empty.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:     name,
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   filepath.Join(abs, name),
			Quant:  quantOf(name),
			Family: familyOf(name),
		})
	}
	return models, nil
}

// quantOf extracts the quantization tag from a filename, uppercased the
// way llama.cpp reports it ("Q4_K_M", "F16").
func quantOf(name string) string {
	m := quantRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// familyOf guesses the model family from the leading filename segment.
func familyOf(name string) string {
	base := strings.TrimSuffix(strings.ToLower(name), ".gguf")
	if i := strings.IndexAny(base, "-_."); i > 0 {
		base = base[:i]
	}
	return base
}
