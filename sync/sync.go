package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitr-mirror/config"
	"gitr-mirror/constants"
	"gitr-mirror/vcs"
	"gitr-mirror/vcs/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// mirrorConcurrency bounds the create/configure fan-out. Catalog reads,
// grace-state bookkeeping and prune execution stay single-threaded.
const mirrorConcurrency = 4

type Engine struct {
	config *config.Config
	source vcs.Source
	mirror vcs.Mirror

	// Injected clock for tests
	now func() time.Time
}

func NewEngine(config *config.Config, source vcs.Source, mirror vcs.Mirror) *Engine {
	return &Engine{
		config: config,
		source: source,
		mirror: mirror,
		now:    time.Now,
	}
}

// Run connects to the configured hosts and reconciles the mirror namespace
// once.
func Run(ctx context.Context, config *config.Config) error {
	source, err := vcs.LoadSource(ctx, config)
	if err != nil {
		return err
	}

	mirror, err := vcs.LoadMirror(ctx, config)
	if err != nil {
		return err
	}

	return NewEngine(config, source, mirror).Run(ctx)
}

// Run performs one reconciliation pass: read both catalogs, plan, create
// and configure mirrors, apply the grace-period prune policy, persist the
// state. A catalog read failure aborts before any mutating call, since a
// partial source catalog would be indistinguishable from mass deletion.
func (engine *Engine) Run(ctx context.Context) error {
	dryRun, _ := ctx.Value(constants.DRY_RUN).(bool)

	catalog, err := engine.source.GetRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed reading source catalog, aborting before any mutation: %w", err)
	}
	log.Info().Int("count", len(catalog)).Msg("Source catalog read")

	mirrors, err := engine.mirror.GetProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed reading mirror catalog, aborting before any mutation: %w", err)
	}
	log.Info().Int("count", len(mirrors)).Msg("Mirror catalog read")

	plan := Reconcile(catalog, mirrors, engine.config.Prune.ExcludeSet())

	state := LoadState(engine.config.Prune.StateFile)
	grace := time.Duration(*engine.config.Prune.GraceDays) * 24 * time.Hour
	deletable, nextState := EvaluatePrune(mirrors, plan.Prune, state, engine.now(), grace)

	created, configured, failed := engine.mirrorAll(ctx, plan, dryRun)
	pruned, pruneFailed := engine.pruneAll(ctx, deletable, nextState, dryRun)
	failed += pruneFailed

	err = nextState.Save(engine.config.Prune.StateFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed saving state")
		failed += 1
	}

	log.Info().
		Bool("dry_run", dryRun).
		Int("created", created).
		Int("configured", configured).
		Int("pruned", pruned).
		Int("failed", failed).
		Msg("Run complete")

	if failed > 0 {
		return errors.New("some repositories failed")
	}

	return nil
}

// mirrorAll fans the plan's mirror actions out over a bounded worker group.
// Failures are isolated per repository: one bad repository never blocks the
// rest.
func (engine *Engine) mirrorAll(ctx context.Context, plan Plan, dryRun bool) (int, int, int) {
	type result struct {
		created bool
		err     error
	}

	results := make([]result, len(plan.Mirror))

	group := errgroup.Group{}
	group.SetLimit(mirrorConcurrency)

	for i, action := range plan.Mirror {
		i, action := i, action
		group.Go(func() error {
			logger := log.With().Str("repository", action.Ref.FullName()).Logger()

			created, err := engine.mirrorRepo(ctx, logger, action, dryRun)
			if err != nil {
				logger.Error().Err(err).Send()
			}

			results[i] = result{created: created, err: err}
			return nil
		})
	}

	// Workers never return errors; failures land in results
	_ = group.Wait()

	created, configured, failed := 0, 0, 0
	for _, res := range results {
		switch {
		case res.err != nil:
			failed += 1
		case res.created:
			created += 1
			configured += 1
		default:
			configured += 1
		}
	}

	return created, configured, failed
}

// pruneAll executes (or reports) the due deletions. A successfully deleted
// project is dropped from the next state, so a future recreation starts its
// grace clock fresh; a failed deletion keeps its entry and stays eligible
// on the next run.
func (engine *Engine) pruneAll(ctx context.Context, deletable []repository.MirrorProject, nextState GraceState, dryRun bool) (int, int) {
	pruned, failed := 0, 0

	for _, project := range deletable {
		logger := log.With().Str("project", project.Name).Int64("id", project.Id).Logger()

		if dryRun {
			logger.Info().Msg("Would delete the mirror project, but dry-run mode is enabled")
			pruned += 1
			continue
		}

		err := engine.mirror.DeleteProject(ctx, project)
		if err != nil {
			logger.Error().Err(err).Msg("Failed deleting project")
			failed += 1
			continue
		}

		delete(nextState, project.Name)
		logger.Info().Msg("Deleted stale mirror project")
		pruned += 1
	}

	return pruned, failed
}
