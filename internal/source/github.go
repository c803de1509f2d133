package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/questcheck/internal/config"
	"github.com/cgast/questcheck/pkg/mission"
)

// GitHub reads a catalog file, or a directory of catalog files, from a
// repository through the contents API.
type GitHub struct {
	client *gh.Client
	owner  string
	repo   string
	path   string
	ref    string
}

// NewGitHub creates a GitHub source. The token is optional for public
// repositories.
func NewGitHub(cfg config.GitHubConfig) (*GitHub, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github catalog source needs owner and repo")
	}

	httpClient := &http.Client{}
	if cfg.Token != "" {
		httpClient.Transport = &tokenTransport{token: cfg.Token}
	}

	p := cfg.Path
	if p == "" {
		p = "missions.yaml"
	}
	return &GitHub{
		client: gh.NewClient(httpClient),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		path:   p,
		ref:    cfg.Ref,
	}, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// setBaseURL points the client at another API root, such as GitHub
// Enterprise or a test server.
func (g *GitHub) setBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	g.client.BaseURL = u
	return nil
}

func (g *GitHub) Describe() string {
	d := fmt.Sprintf("github:%s/%s/%s", g.owner, g.repo, g.path)
	if g.ref != "" {
		d += "@" + g.ref
	}
	return d
}

func (g *GitHub) Load(ctx context.Context) (*mission.Catalog, error) {
	file, dir, err := g.contents(ctx, g.path)
	if err != nil {
		return nil, err
	}
	if file != nil {
		doc, err := decodeContent(file)
		if err != nil {
			return nil, err
		}
		return mission.MergeFiles(doc)
	}

	var names []string
	for _, entry := range dir {
		ext := strings.ToLower(path.Ext(entry.GetName()))
		if entry.GetType() == "file" && (ext == ".yaml" || ext == ".yml") {
			names = append(names, entry.GetPath())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("github %s/%s: %s has no yaml files", g.owner, g.repo, g.path)
	}
	sort.Strings(names)

	docs := make([]mission.CatalogFile, 0, len(names))
	for _, name := range names {
		f, _, err := g.contents(ctx, name)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("github %s/%s: %s is not a file", g.owner, g.repo, name)
		}
		doc, err := decodeContent(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return mission.MergeFiles(docs...)
}

func (g *GitHub) contents(ctx context.Context, p string) (*gh.RepositoryContent, []*gh.RepositoryContent, error) {
	var opts *gh.RepositoryContentGetOptions
	if g.ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: g.ref}
	}
	file, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, p, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("github %s/%s: get %s: %w", g.owner, g.repo, p, err)
	}
	return file, dir, nil
}

func decodeContent(f *gh.RepositoryContent) (mission.CatalogFile, error) {
	body, err := f.GetContent()
	if err != nil {
		return mission.CatalogFile{}, fmt.Errorf("decode %s: %w", f.GetPath(), err)
	}
	doc, err := mission.ParseFile([]byte(body))
	if err != nil {
		return mission.CatalogFile{}, fmt.Errorf("%s: %w", f.GetPath(), err)
	}
	return doc, nil
}
