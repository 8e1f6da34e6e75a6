package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gitr-mirror/config"
	"gitr-mirror/constants"
	"gitr-mirror/vcs/repository"

	"github.com/rs/zerolog/log"
	"github.com/xanzy/go-gitlab"
)

type GitLab struct {
	config *config.Host
	client *gitlab.Client
}

func NewGitLabClient(ctx context.Context, config config.Host) (*GitLab, error) {
	logger := log.With().Str("host", config.Name).Logger()

	logger.Info().Msg("Initializing client")

	client, err := gitlab.NewClient(config.Token.Value(), gitlab.WithBaseURL(config.BaseUrl))
	if err != nil {
		return nil, err
	}

	user, _, err := client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed checking credentials: %w", err)
	}

	logger.Info().Msgf("Logged in as %s", user.Username)

	return &GitLab{config: &config, client: client}, nil
}

func (gitlabClient *GitLab) GetConfig() *config.Host {
	return gitlabClient.config
}

func (gitlabClient *GitLab) GetProjects(ctx context.Context) ([]repository.MirrorProject, error) {
	logger := log.With().Str("host", gitlabClient.config.Name).Logger()

	allProjects := []repository.MirrorProject{}
	options := &gitlab.ListGroupProjectsOptions{
		ListOptions: gitlab.ListOptions{
			PerPage: constants.PAGE_SIZE,
			Page:    1,
		},
	}

	for {
		projects, resp, err := gitlabClient.client.Groups.ListGroupProjects(
			gitlabClient.config.GroupId, options, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}

		for _, project := range projects {
			logger.Debug().Str("project", project.Name).Int("id", project.ID).Msg("Found project")
			allProjects = append(allProjects, repository.MirrorProject{
				Id:        int64(project.ID),
				Name:      project.Name,
				Namespace: gitlabClient.config.GroupPath,
			})
		}

		if resp.NextPage == 0 {
			break
		}

		options.ListOptions.Page = resp.NextPage
	}

	return allProjects, nil
}

func (gitlabClient *GitLab) FindProjectByName(ctx context.Context, name string) (*repository.MirrorProject, error) {
	options := &gitlab.ListGroupProjectsOptions{
		Search: gitlab.Ptr(name),
		ListOptions: gitlab.ListOptions{
			PerPage: constants.PAGE_SIZE,
			Page:    1,
		},
	}

	for {
		projects, resp, err := gitlabClient.client.Groups.ListGroupProjects(
			gitlabClient.config.GroupId, options, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}

		for _, project := range projects {
			if strings.EqualFold(project.Name, name) {
				return &repository.MirrorProject{
					Id:        int64(project.ID),
					Name:      project.Name,
					Namespace: gitlabClient.config.GroupPath,
				}, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}

		options.ListOptions.Page = resp.NextPage
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (gitlabClient *GitLab) CreateProject(ctx context.Context, options *CreateProjectOptions) (*repository.MirrorProject, error) {
	project, _, err := gitlabClient.client.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:        gitlab.Ptr(options.Name),
		NamespaceID: gitlab.Ptr(gitlabClient.config.GroupId),
		Visibility:  gitlab.Ptr(gitlab.PrivateVisibility),
		Description: gitlab.Ptr(options.Description),
	}, gitlab.WithContext(ctx))

	if err != nil {
		if isNameTaken(err) {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, options.Name)
		}
		return nil, err
	}

	return &repository.MirrorProject{
		Id:        int64(project.ID),
		Name:      project.Name,
		Namespace: gitlabClient.config.GroupPath,
	}, nil
}

// ConfigureSync upserts the pull mirror for a project. GitLab appends a new
// remote mirror on every create call, so an existing mirror for the same
// remote is edited in place instead.
func (gitlabClient *GitLab) ConfigureSync(ctx context.Context, project repository.MirrorProject, sync repository.SyncConfig) error {
	projectId := int(project.Id)

	mirrors, _, err := gitlabClient.client.ProjectMirrors.ListProjectMirror(
		projectId, nil, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed listing mirrors: %w", err)
	}

	for _, mirror := range mirrors {
		if SafeUrl(mirror.URL) != SafeUrl(sync.RemoteUrl) {
			continue
		}

		_, _, err := gitlabClient.client.ProjectMirrors.EditProjectMirror(
			projectId, mirror.ID, &gitlab.EditProjectMirrorOptions{
				Enabled:               gitlab.Ptr(sync.Enabled),
				OnlyProtectedBranches: gitlab.Ptr(sync.OnlyProtectedBranches),
				KeepDivergentRefs:     gitlab.Ptr(sync.KeepDivergentRefs),
			}, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed updating mirror: %w", err)
		}

		return nil
	}

	_, _, err = gitlabClient.client.ProjectMirrors.AddProjectMirror(
		projectId, &gitlab.AddProjectMirrorOptions{
			URL:                   gitlab.Ptr(sync.RemoteUrl),
			Enabled:               gitlab.Ptr(sync.Enabled),
			OnlyProtectedBranches: gitlab.Ptr(sync.OnlyProtectedBranches),
			KeepDivergentRefs:     gitlab.Ptr(sync.KeepDivergentRefs),
		}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed adding mirror: %w", err)
	}

	return nil
}

func (gitlabClient *GitLab) DeleteProject(ctx context.Context, project repository.MirrorProject) error {
	_, err := gitlabClient.client.Projects.DeleteProject(int(project.Id), nil, gitlab.WithContext(ctx))
	return err
}

// isNameTaken matches the conflict GitLab reports when a project name or
// path already exists in the namespace.
func isNameTaken(err error) bool {
	var errResp *gitlab.ErrorResponse
	if !errors.As(err, &errResp) {
		return false
	}

	code := errResp.Response.StatusCode
	if code == http.StatusConflict {
		return true
	}

	return code == http.StatusBadRequest && strings.Contains(errResp.Message, "taken")
}
