package mission

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/missions.yaml
var defaultCatalogYAML []byte

// CatalogFile is the YAML document a catalog is authored in.
type CatalogFile struct {
	Version  string    `yaml:"version"`
	Name     string    `yaml:"name"`
	Missions []Mission `yaml:"missions"`
}

// Default returns the built-in catalog shipped with the binary.
func Default() (*Catalog, error) {
	cat, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}
	return cat, nil
}

// DefaultYAML returns the raw YAML of the built-in catalog.
func DefaultYAML() []byte {
	return bytes.Clone(defaultCatalogYAML)
}

// ParseCatalog parses and validates a single catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	file, err := ParseFile(data)
	if err != nil {
		return nil, err
	}
	return MergeFiles(file)
}

// ParseFile decodes a catalog document without validating it. Unknown
// top-level and mission keys are rejected so typos surface early.
func ParseFile(data []byte) (CatalogFile, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return CatalogFile{}, fmt.Errorf("parse catalog: empty document")
		}
		return CatalogFile{}, fmt.Errorf("parse catalog: %w", err)
	}
	return file, nil
}

// MergeFiles combines catalog documents into one validated catalog. Every
// document must carry the same version.
func MergeFiles(files ...CatalogFile) (*Catalog, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog documents")
	}

	version := files[0].Version
	var missions []Mission
	for _, f := range files {
		if f.Version != version {
			return nil, fmt.Errorf("catalog version mismatch: %q and %q", version, f.Version)
		}
		missions = append(missions, f.Missions...)
	}
	return NewCatalog(version, missions)
}

// LoadCatalog reads a catalog from a YAML file, or from every *.yaml and
// *.yml file in a directory.
func LoadCatalog(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	if !info.IsDir() {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return MergeFiles(file)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir %s: %w", path, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog dir %s has no yaml files", path)
	}
	sort.Strings(names)

	files := make([]CatalogFile, 0, len(names))
	for _, name := range names {
		file, err := loadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return MergeFiles(files...)
}

func loadFile(path string) (CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CatalogFile{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	file, err := ParseFile(data)
	if err != nil {
		return CatalogFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}
