package vcs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"gitr-mirror/config"
	"gitr-mirror/constants"
	"gitr-mirror/vcs/repository"

	"code.gitea.io/sdk/gitea"
	"github.com/rs/zerolog/log"
)

type Gitea struct {
	config         *config.Host
	client         *gitea.Client
	mutex          *sync.Mutex
	initialContext context.Context
}

func NewGiteaClient(ctx context.Context, config config.Host) (*Gitea, error) {
	logger := log.With().Str("host", config.Name).Logger()

	logger.Info().Msg("Initializing client")

	client, err := gitea.NewClient(config.BaseUrl, gitea.SetToken(config.Token.Value()), gitea.SetContext(ctx))
	if err != nil {
		return nil, err
	}

	user, _, err := client.GetMyUserInfo()
	if err != nil {
		return nil, fmt.Errorf("failed checking credentials: %w", err)
	}

	logger.Info().Msgf("Logged in as %s", user.UserName)

	return &Gitea{config: &config, client: client, mutex: &sync.Mutex{}, initialContext: ctx}, nil
}

func (giteaClient *Gitea) withContext(ctx context.Context, cb func(client *gitea.Client) error) error {
	// We need the mutex to protect against setting the default context for the current request
	giteaClient.mutex.Lock()

	giteaClient.client.SetContext(ctx)
	err := cb(giteaClient.client)
	giteaClient.client.SetContext(giteaClient.initialContext)

	giteaClient.mutex.Unlock()

	return err
}

func (giteaClient *Gitea) GetConfig() *config.Host {
	return giteaClient.config
}

func (giteaClient *Gitea) GetProjects(ctx context.Context) ([]repository.MirrorProject, error) {
	logger := log.With().Str("host", giteaClient.config.Name).Logger()

	allProjects := []repository.MirrorProject{}
	options := gitea.ListOrgReposOptions{
		ListOptions: gitea.ListOptions{
			Page:     1,
			PageSize: constants.PAGE_SIZE,
		},
	}

	for {
		var repos []*gitea.Repository
		var resp *gitea.Response

		err := giteaClient.withContext(ctx, func(client *gitea.Client) error {
			var err error
			repos, resp, err = client.ListOrgRepos(giteaClient.config.Org, options)
			return err
		})

		if err != nil {
			return nil, err
		}

		for _, repo := range repos {
			logger.Debug().Str("project", repo.Name).Int64("id", repo.ID).Msg("Found project")
			allProjects = append(allProjects, repository.MirrorProject{
				Id:        repo.ID,
				Name:      repo.Name,
				Namespace: giteaClient.config.Org,
			})
		}

		totalCount, err := strconv.Atoi(resp.Header.Get("X-Total-Count"))
		if err != nil {
			return nil, err
		}

		if totalCount <= len(allProjects) {
			break
		}

		options.ListOptions.Page += 1
	}

	return allProjects, nil
}

func (giteaClient *Gitea) FindProjectByName(ctx context.Context, name string) (*repository.MirrorProject, error) {
	var repo *gitea.Repository

	err := giteaClient.withContext(ctx, func(client *gitea.Client) error {
		var resp *gitea.Response
		var err error

		repo, resp, err = client.GetRepo(giteaClient.config.Org, name)
		if err != nil && resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	})

	if err != nil {
		return nil, err
	}

	return &repository.MirrorProject{
		Id:        repo.ID,
		Name:      repo.Name,
		Namespace: giteaClient.config.Org,
	}, nil
}

// CreateProject migrates the source repository as a pull mirror. Gitea only
// attaches mirror configuration at migration time, so creation and mirror
// setup happen in one call.
func (giteaClient *Gitea) CreateProject(ctx context.Context, options *CreateProjectOptions) (*repository.MirrorProject, error) {
	cloneAddr, authToken := splitCredential(options.Mirror.RemoteUrl)

	var repo *gitea.Repository
	err := giteaClient.withContext(ctx, func(client *gitea.Client) error {
		var resp *gitea.Response
		var err error

		repo, resp, err = client.MigrateRepo(gitea.MigrateRepoOption{
			RepoName:    options.Name,
			RepoOwner:   giteaClient.config.Org,
			CloneAddr:   cloneAddr,
			Service:     gitea.GitServiceGithub,
			AuthToken:   authToken,
			Mirror:      true,
			Private:     true,
			Description: options.Description,
		})
		if err != nil && resp != nil && resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %s", ErrNameTaken, options.Name)
		}
		return err
	})

	if err != nil {
		return nil, err
	}

	return &repository.MirrorProject{
		Id:        repo.ID,
		Name:      repo.Name,
		Namespace: giteaClient.config.Org,
	}, nil
}

// ConfigureSync triggers a mirror sync. The mirror remote itself was fixed
// at migration time and cannot be reasserted through the API, so a drifted
// remote url is surfaced in the log instead of repaired. Gitea never
// reports the stored credential, so credential drift stays invisible here.
func (giteaClient *Gitea) ConfigureSync(ctx context.Context, project repository.MirrorProject, syncConfig repository.SyncConfig) error {
	logger := log.With().Str("host", giteaClient.config.Name).Str("project", project.Name).Logger()

	return giteaClient.withContext(ctx, func(client *gitea.Client) error {
		repo, _, err := client.GetRepo(giteaClient.config.Org, project.Name)
		if err != nil {
			return err
		}

		if repo.Mirror && repo.OriginalURL != "" && SafeUrl(repo.OriginalURL) != SafeUrl(syncConfig.RemoteUrl) {
			logger.Warn().
				Str("current", SafeUrl(repo.OriginalURL)).
				Str("desired", SafeUrl(syncConfig.RemoteUrl)).
				Msg("Mirror remote differs from the desired source, recreate the project to repair it")
		}

		_, err = client.MirrorSync(giteaClient.config.Org, project.Name)
		return err
	})
}

func (giteaClient *Gitea) DeleteProject(ctx context.Context, project repository.MirrorProject) error {
	return giteaClient.withContext(ctx, func(client *gitea.Client) error {
		_, err := client.DeleteRepo(giteaClient.config.Org, project.Name)
		return err
	})
}

// splitCredential separates the embedded credential from a pull url, since
// gitea takes the token as a separate migration field.
func splitCredential(rawUrl string) (string, string) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return rawUrl, ""
	}

	token := ""
	if parsed.User != nil {
		token, _ = parsed.User.Password()
	}

	parsed.User = nil
	return parsed.String(), token
}
