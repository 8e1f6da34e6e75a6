package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"gitr-mirror/config"
	"gitr-mirror/vcs/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by FindProjectByName when no project matches.
var ErrNotFound = errors.New("project not found")

// ErrNameTaken is returned by CreateProject when the name is already used in
// the namespace, typically a race with a concurrent run.
var ErrNameTaken = errors.New("project name already taken")

// Source lists the repositories that should have mirrors.
type Source interface {
	GetConfig() *config.Host

	// GetRepositories returns every repository visible to the host
	// credential plus the public repositories of the configured owners,
	// deduplicated by owner/name. An error means the catalog is
	// incomplete and must not be acted upon.
	GetRepositories(ctx context.Context) ([]repository.RepositoryRef, error)

	// PullUrl builds the clone url for a repository with the source
	// credential embedded, suitable as a pull-mirror remote.
	PullUrl(ref repository.RepositoryRef) string
}

type CreateProjectOptions struct {
	Name        string
	Description string
	Mirror      repository.SyncConfig
}

// Mirror manages projects in the mirror namespace.
type Mirror interface {
	GetConfig() *config.Host

	GetProjects(ctx context.Context) ([]repository.MirrorProject, error)

	// FindProjectByName matches case-insensitively, following the mirror
	// host's own name uniqueness rule. Returns ErrNotFound when missing.
	FindProjectByName(ctx context.Context, name string) (*repository.MirrorProject, error)

	// CreateProject creates a private project. Returns an error wrapping
	// ErrNameTaken on a name conflict.
	CreateProject(ctx context.Context, options *CreateProjectOptions) (*repository.MirrorProject, error)

	// ConfigureSync asserts the desired pull-mirror configuration on an
	// existing project. Safe to call repeatedly.
	ConfigureSync(ctx context.Context, project repository.MirrorProject, sync repository.SyncConfig) error

	DeleteProject(ctx context.Context, project repository.MirrorProject) error
}

func LoadSource(ctx context.Context, config *config.Config) (Source, error) {
	host := config.Source()

	switch host.Type {
	case "github":
		return NewGitHubClient(ctx, *host)
	}

	return nil, fmt.Errorf("unsupported source host type: %s", host.Type)
}

func LoadMirror(ctx context.Context, config *config.Config) (Mirror, error) {
	host := config.Mirror()

	switch host.Type {
	case "gitlab":
		return NewGitLabClient(ctx, *host)
	case "gitea":
		return NewGiteaClient(ctx, *host)
	}

	return nil, fmt.Errorf("unsupported mirror host type: %s", host.Type)
}

func GetLogger(host *config.Host) zerolog.Logger {
	return log.With().Str("host", host.Name).Logger()
}

// SafeUrl strips userinfo from a url for logging.
func SafeUrl(rawUrl string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return rawUrl
	}

	parsed.User = nil
	return parsed.String()
}
