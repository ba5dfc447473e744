package modscan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Strategy mirrors spec.md §3's DirectoryDescriptor.strategy.
type Strategy int

const (
	StrategyEmpty Strategy = iota
	StrategySingleFile
	StrategyMultiFile
)

// DirectoryDescriptor is the output of C3 (spec.md §4.3), for one
// directory level; recursion across SubDirs is the caller's (C5/C6's)
// responsibility, so that eager and lazy builders can choose when to
// descend.
type DirectoryDescriptor struct {
	DirPath       string
	CategoryKey   string
	Strategy      Strategy
	Modules       []*ModuleDescriptor // lexicographic by filename
	SubDirs       []string            // absolute paths, lexicographic by dir name
	MultiDefault  bool
	FlattenSingle bool
}

// moduleFileExt is the module-file extension set (spec.md §6): slothlet
// modules are plain Go source, re-grounded per SPEC_FULL.md §0.
const moduleFileExt = ".go"

// ScanDir classifies one directory level. fileKey sanitizes a module
// file's base name (without extension) into its dot-path key — the
// caller supplies it so that C3 never has to carry C1's rule
// configuration itself.
func ScanDir(dirPath, categoryKey string, fileKey func(name string) string) (*DirectoryDescriptor, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("slothlet: LoadError: read dir %s: %w", dirPath, err)
	}

	desc := &DirectoryDescriptor{DirPath: dirPath, CategoryKey: categoryKey}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			desc.SubDirs = append(desc.SubDirs, filepath.Join(dirPath, name))
			continue
		}
		if !strings.HasSuffix(name, moduleFileExt) {
			continue
		}
		if isAddAPIConvention(name) {
			continue
		}
		base := strings.TrimSuffix(name, moduleFileExt)
		key := fileKey(base)
		if strings.HasPrefix(key, "_") {
			continue
		}

		m, err := Analyze(filepath.Join(dirPath, name), key)
		if err != nil {
			return nil, err
		}
		desc.Modules = append(desc.Modules, m)
	}

	switch {
	case len(desc.Modules) == 0 && len(desc.SubDirs) == 0:
		desc.Strategy = StrategyEmpty
	case len(desc.Modules) == 1 && len(desc.SubDirs) == 0:
		desc.Strategy = StrategySingleFile
	default:
		desc.Strategy = StrategyMultiFile
	}

	defaults := 0
	for _, m := range desc.Modules {
		if m.DefaultKind != DefaultNone {
			defaults++
		}
	}
	desc.MultiDefault = defaults >= 2

	if desc.Strategy == StrategySingleFile {
		desc.FlattenSingle = desc.Modules[0].FileKey == categoryKey
	}

	return desc, nil
}

func isAddAPIConvention(name string) bool {
	return strings.HasPrefix(name, "addapi.")
}
