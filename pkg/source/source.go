// Package source resolves a hypotheses configuration location (local file,
// http(s) URL or GitHub repository path) into a loaded registry.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v83/github"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/net"
)

const (
	schemeGitHub = "github://"
	schemeHTTP   = "http://"
	schemeHTTPS  = "https://"

	gitHubLocationParts = 3
)

var (
	errNoLocation  = errors.New("no hypotheses location configured")
	errNotAFile    = errors.New("location is not a file")
	errBadLocation = errors.New("expected github://owner/repo/path[@ref]")
)

// Loader fetches configuration payloads.
type Loader struct {
	HTTP   *http.Client
	GitHub *github.Client
}

// NewLoader returns a loader. When token is set, GitHub requests are
// authenticated with it.
func NewLoader(ctx context.Context, token string) *Loader {
	l := &Loader{HTTP: net.GetHTTPClient()}
	if token != "" {
		l.GitHub = github.NewClient(net.GetOAuthClient(ctx, token))
	} else {
		l.GitHub = github.NewClient(l.HTTP)
	}
	return l
}

// Load fetches the payload at location and parses it. Every failure is a
// *hypothesis.ConfigError.
func (l *Loader) Load(ctx context.Context, location string) (*hypothesis.Registry, error) {
	b, err := l.Fetch(ctx, location)
	if err != nil {
		var ce *hypothesis.ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, hypothesis.NewConfigError(err)
	}

	reg, err := hypothesis.Load(b)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", location, err)
	}
	return reg, nil
}

// Fetch returns the raw payload at location.
func (l *Loader) Fetch(ctx context.Context, location string) ([]byte, error) {
	location = strings.TrimSpace(location)
	slog.Debug("fetching hypotheses", "location", location)

	switch {
	case location == "":
		return nil, errNoLocation
	case strings.HasPrefix(location, schemeGitHub):
		return l.fetchGitHub(ctx, location)
	case strings.HasPrefix(location, schemeHTTP), strings.HasPrefix(location, schemeHTTPS):
		b, err := net.Fetch(ctx, l.HTTP, location)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", location, err)
		}
		return b, nil
	default:
		b, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", location, err)
		}
		return b, nil
	}
}

// GitHubLocation is a parsed github://owner/repo/path[@ref] location.
type GitHubLocation struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseGitHubLocation parses a github:// location.
func ParseGitHubLocation(location string) (*GitHubLocation, error) {
	rest, ok := strings.CutPrefix(location, schemeGitHub)
	if !ok {
		return nil, errBadLocation
	}

	var ref string
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, ref = rest[:i], rest[i+1:]
	}

	parts := strings.SplitN(rest, "/", gitHubLocationParts)
	if len(parts) != gitHubLocationParts {
		return nil, errBadLocation
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, errBadLocation
		}
	}

	return &GitHubLocation{
		Owner: parts[0],
		Repo:  parts[1],
		Path:  parts[2],
		Ref:   ref,
	}, nil
}

func (l *Loader) fetchGitHub(ctx context.Context, location string) ([]byte, error) {
	loc, err := ParseGitHubLocation(location)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", location, err)
	}

	var opts *github.RepositoryContentGetOptions
	if loc.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: loc.Ref}
	}

	file, _, resp, err := l.GitHub.Repositories.GetContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s/%s: %w", loc.Owner, loc.Repo, loc.Path, err)
	}
	if resp != nil {
		slog.Debug("github contents", "owner", loc.Owner, "repo", loc.Repo, "path", loc.Path,
			"remaining", resp.Rate.Remaining)
	}
	if file == nil {
		return nil, fmt.Errorf("%s: %w", location, errNotAFile)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", location, err)
	}
	return []byte(content), nil
}
