package sync

import (
	"context"
	"errors"
	"fmt"

	"gitr-mirror/vcs"
	"gitr-mirror/vcs/repository"

	"github.com/rs/zerolog"
)

// CreateError is a per-repository creation failure. It never aborts the
// run; other repositories keep processing.
type CreateError struct {
	Ref repository.RepositoryRef
	Err error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed creating mirror for %s: %v", e.Ref.FullName(), e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// ensureProject returns the mirror project for a source repository,
// creating it if needed. Safe under retries and concurrent runs: a lookup
// runs first, and a creation lost to a name conflict falls back to a second
// lookup. At most one live project per name is ever left behind.
func (engine *Engine) ensureProject(ctx context.Context, logger zerolog.Logger, ref repository.RepositoryRef, sync repository.SyncConfig) (*repository.MirrorProject, bool, error) {
	project, err := engine.mirror.FindProjectByName(ctx, ref.Name)
	if err == nil {
		logger.Info().Int64("id", project.Id).Msg("Project already exists")
		return project, false, nil
	}

	if !errors.Is(err, vcs.ErrNotFound) {
		return nil, false, &CreateError{Ref: ref, Err: err}
	}

	project, err = engine.mirror.CreateProject(ctx, &vcs.CreateProjectOptions{
		Name:        ref.Name,
		Description: fmt.Sprintf("Mirror of %s/%s", engine.source.GetConfig().BaseUrl, ref.FullName()),
		Mirror:      sync,
	})
	if err == nil {
		logger.Info().Int64("id", project.Id).Msg("Created project")
		return project, true, nil
	}

	if errors.Is(err, vcs.ErrNameTaken) {
		// Raced against a concurrent run or a manual creation
		logger.Warn().Msg("Name already taken, looking up existing project")

		project, lookupErr := engine.mirror.FindProjectByName(ctx, ref.Name)
		if lookupErr == nil {
			return project, false, nil
		}

		return nil, false, &CreateError{Ref: ref, Err: lookupErr}
	}

	return nil, false, &CreateError{Ref: ref, Err: err}
}

// mirrorRepo drives one repository through the creator and the sync
// configurator. Returns whether a project was created.
func (engine *Engine) mirrorRepo(ctx context.Context, logger zerolog.Logger, action Action, dryRun bool) (bool, error) {
	sync := repository.SyncConfig{
		RemoteUrl:             engine.source.PullUrl(action.Ref),
		Enabled:               true,
		OnlyProtectedBranches: false,
		KeepDivergentRefs:     true,
	}

	if dryRun {
		if action.Project == nil {
			logger.Info().Msg("Would create the mirror project, but dry-run mode is enabled")
		} else {
			logger.Info().Int64("id", action.Project.Id).Msg("Would configure mirror sync, but dry-run mode is enabled")
		}
		return action.Project == nil, nil
	}

	project := action.Project
	created := false

	if project == nil {
		var err error
		project, created, err = engine.ensureProject(ctx, logger, action.Ref, sync)
		if err != nil {
			return false, err
		}
	}

	err := engine.mirror.ConfigureSync(ctx, *project, sync)
	if err != nil {
		return created, fmt.Errorf("failed configuring sync for %s: %w", action.Ref.FullName(), err)
	}

	logger.Debug().Int64("id", project.Id).Msg("Mirror sync configured")
	return created, nil
}
