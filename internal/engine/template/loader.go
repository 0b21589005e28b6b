package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/pkg/engerr"
)

// LoadError records one template file that failed to parse. Parse failures
// never abort a directory load -- the offending file is skipped and every
// other file keeps loading, per the engine's "skip with a warning" policy
// for malformed templates.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("template: %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Title() string { return "Template Parse Error" }

func (e *LoadError) ShouldPrintUsage() bool { return false }

var _ engerr.EngineError = (*LoadError)(nil)

// LoadFile parses a single template file, dispatching on extension: ".json"
// decodes either one aggregated template or a JSON array of them; anything
// else is parsed as a single YAML document.
func LoadFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			list, err := ParseJSONList(data)
			if err != nil {
				return nil, &LoadError{Path: path, Err: err}
			}
			return list, nil
		}
		t, err := ParseJSON(data)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		return []Template{t}, nil
	}
	t, err := ParseYAML(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return []Template{t}, nil
}

// templateExt reports whether name carries a recognized template file
// extension.
func templateExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

// LoadDir walks root recursively, parsing every template file it finds.
// Each file that fails to parse is recorded in the returned error slice and
// otherwise skipped; the directory walk itself only fails on a read error
// for root or one of its subdirectories, which is fatal since it means the
// corpus couldn't be enumerated at all.
func LoadDir(root string) ([]Template, []error) {
	var templates []Template
	var errs []error

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !templateExt(d.Name()) {
			return nil
		}
		loaded, loadErr := LoadFile(path)
		if loadErr != nil {
			errs = append(errs, loadErr)
			return nil
		}
		templates = append(templates, loaded...)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, &LoadError{Path: root, Err: walkErr})
	}
	return templates, errs
}

// Load parses every path, dispatching to LoadFile for a regular file and
// LoadDir for a directory. File-not-found and other per-path stat failures
// are recorded as load errors rather than aborting the rest of the set.
func Load(paths ...string) ([]Template, []error) {
	var templates []Template
	var errs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, &LoadError{Path: p, Err: err})
			continue
		}
		if info.IsDir() {
			loaded, dirErrs := LoadDir(p)
			templates = append(templates, loaded...)
			errs = append(errs, dirErrs...)
			continue
		}
		loaded, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		templates = append(templates, loaded...)
	}
	return templates, errs
}
