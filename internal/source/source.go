// Package source loads the mission catalog from wherever it is published:
// the copy embedded in the binary, a local file or directory, an HTTP URL
// or a GitHub repository.
package source

import (
	"context"
	"fmt"

	"github.com/cgast/questcheck/internal/config"
	"github.com/cgast/questcheck/pkg/mission"
)

// maxCatalogBytes caps remote catalog downloads.
const maxCatalogBytes = 10 * 1024 * 1024

// Source loads a validated catalog.
type Source interface {
	Load(ctx context.Context) (*mission.Catalog, error)
	Describe() string
}

// New builds the Source selected by cfg.
func New(cfg config.CatalogConfig) (Source, error) {
	switch cfg.Source() {
	case config.SourceFile:
		return File{Path: cfg.Path}, nil
	case config.SourceHTTP:
		return NewHTTP(cfg.URL, cfg.AllowedDomains), nil
	case config.SourceGitHub:
		return NewGitHub(cfg.GitHub)
	case config.SourceEmbedded:
		return Embedded{}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source())
	}
}

// Embedded serves the catalog compiled into the binary.
type Embedded struct{}

func (Embedded) Load(context.Context) (*mission.Catalog, error) {
	return mission.Default()
}

func (Embedded) Describe() string { return "embedded" }

// File reads a catalog file or directory from disk.
type File struct {
	Path string
}

func (f File) Load(ctx context.Context) (*mission.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mission.LoadCatalog(f.Path)
}

func (f File) Describe() string { return "file:" + f.Path }
