package vcs

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gitr-mirror/config"
	"gitr-mirror/constants"
	"gitr-mirror/vcs/repository"

	"github.com/google/go-github/v50/github"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type GitHub struct {
	config   *config.Host
	client   *github.Client
	username string

	// Overridable for tests, so rate backoff can run without wall-clock waits
	now   func() time.Time
	sleep func(d time.Duration)
}

func NewGitHubClient(ctx context.Context, config config.Host) (*GitHub, error) {
	logger := log.With().Str("host", config.Name).Logger()

	logger.Info().Msg("Initializing client")

	if config.BaseUrl != "" && !strings.HasPrefix(config.BaseUrl, "https://github.com") {
		return nil, fmt.Errorf("GHES not supported yet: %s", config.BaseUrl)
	}

	client := github.NewTokenClient(ctx, config.Token.Value())

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed checking credentials: %w", err)
	}

	username := user.GetLogin()
	logger.Info().Msgf("Logged in as %s", username)

	return &GitHub{
		config:   &config,
		client:   client,
		username: username,
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

func (this *GitHub) GetConfig() *config.Host {
	return this.config
}

// GetRepositories merges two listing endpoints: everything the credential
// can see (private and owned repositories) and the public repositories of
// every configured owner (which surfaces forks and public repositories not
// owned by the credential holder). Results are deduplicated by owner/name,
// first seen wins.
func (this *GitHub) GetRepositories(ctx context.Context) ([]repository.RepositoryRef, error) {
	logger := log.With().Str("host", this.config.Name).Logger()

	seen := map[string]struct{}{}
	allRepos := []repository.RepositoryRef{}

	collect := func(repos []*github.Repository) {
		for _, repo := range repos {
			ref := repository.RepositoryRef{
				Owner: repo.GetOwner().GetLogin(),
				Name:  repo.GetName(),
			}

			if _, found := seen[ref.FullName()]; found {
				continue
			}
			seen[ref.FullName()] = struct{}{}

			logger.Debug().Str("repository", ref.FullName()).Msg("Found repository")
			allRepos = append(allRepos, ref)
		}
	}

	// Everything visible to the credential
	err := this.listRepositories(ctx, logger, "", collect)
	if err != nil {
		return nil, fmt.Errorf("failed listing repositories for credential: %w", err)
	}

	// Public repositories of each configured owner
	for _, owner := range this.config.Owners {
		err := this.listRepositories(ctx, logger, owner, collect)
		if err != nil {
			return nil, fmt.Errorf("failed listing repositories for %s: %w", owner, err)
		}
	}

	return allRepos, nil
}

// listRepositories pages one listing endpoint to exhaustion. Any page error
// aborts the enumeration: a partial catalog must not masquerade as a
// complete one, since downstream deletion decisions depend on absence.
func (this *GitHub) listRepositories(ctx context.Context, logger zerolog.Logger, owner string, collect func([]*github.Repository)) error {
	options := &github.RepositoryListOptions{
		Type: "all",
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: constants.PAGE_SIZE,
		},
	}

	for {
		repos, resp, err := this.client.Repositories.List(ctx, owner, options)
		if err != nil {
			return err
		}

		collect(repos)

		if resp.NextPage == 0 {
			break
		}

		options.ListOptions.Page = resp.NextPage

		this.waitForRateBudget(ctx, logger, resp.Rate)
	}

	return nil
}

// waitForRateBudget suspends listing when the remaining request budget is
// nearly exhausted, until the API-reported reset time plus a safety margin.
func (this *GitHub) waitForRateBudget(ctx context.Context, logger zerolog.Logger, rate github.Rate) {
	if rate.Reset.IsZero() || rate.Remaining >= constants.RATE_THRESHOLD {
		return
	}

	delay := rate.Reset.Time.Sub(this.now()) + constants.RATE_MARGIN
	if delay < constants.RATE_MIN_SLEEP {
		delay = constants.RATE_MIN_SLEEP
	}

	logger.Warn().
		Int("remaining", rate.Remaining).
		Time("reset", rate.Reset.Time).
		Dur("delay", delay).
		Msg("Rate budget nearly exhausted, suspending listing")

	select {
	case <-ctx.Done():
	default:
		this.sleep(delay)
	}
}

// PullUrl embeds the source credential in the clone url, the form the
// mirror host pulls from.
func (this *GitHub) PullUrl(ref repository.RepositoryRef) string {
	parsed, err := url.Parse(this.config.BaseUrl)
	if err != nil {
		// BaseUrl was validated at load time
		return ""
	}

	parsed.User = url.UserPassword("oauth2", this.config.Token.Value())
	parsed.Path = fmt.Sprintf("/%s/%s.git", ref.Owner, ref.Name)

	return parsed.String()
}
