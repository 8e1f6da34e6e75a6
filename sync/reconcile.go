package sync

import (
	"strings"

	"gitr-mirror/vcs/repository"
)

// Action is one repository to mirror. Project is the existing mirror project
// when there is one; nil means it must be created first. Sync configuration
// is reasserted either way, so drift (a rotated credential, a disabled
// mirror) heals without manual intervention.
type Action struct {
	Ref     repository.RepositoryRef
	Project *repository.MirrorProject
}

// Plan is the set difference between the source catalog and the mirror
// namespace. Prune holds the projects structurally absent from the source;
// whether they are actually deleted is the pruner's call, not the plan's.
type Plan struct {
	Mirror []Action
	Prune  []repository.MirrorProject
}

// Creations returns the refs in the plan with no existing mirror project.
func (plan Plan) Creations() []repository.RepositoryRef {
	refs := []repository.RepositoryRef{}
	for _, action := range plan.Mirror {
		if action.Project == nil {
			refs = append(refs, action.Ref)
		}
	}
	return refs
}

// Reconcile computes the plan from a run's catalog snapshots. Name matching
// between source repositories and mirror projects is case-insensitive,
// matching the mirror hosts' own uniqueness rule; the catalog itself is
// already deduplicated on the case-sensitive owner/name key.
//
// Two catalog entries sharing a case-insensitive name (an owned repository
// and another owner's fork, say) can only map to one mirror project, so
// they collapse to a single action; first seen wins, as in the catalog
// merge. This also keeps a name from being created or configured twice
// concurrently within one run.
func Reconcile(catalog []repository.RepositoryRef, mirrors []repository.MirrorProject, exclude map[string]struct{}) Plan {
	projectsByName := map[string]repository.MirrorProject{}
	for _, project := range mirrors {
		projectsByName[strings.ToLower(project.Name)] = project
	}

	sourceNames := map[string]struct{}{}
	planned := map[string]struct{}{}
	plan := Plan{}

	for _, ref := range catalog {
		name := strings.ToLower(ref.Name)
		sourceNames[name] = struct{}{}

		if ref.Hidden() {
			continue
		}

		if _, found := planned[name]; found {
			continue
		}
		planned[name] = struct{}{}

		action := Action{Ref: ref}
		if project, found := projectsByName[name]; found {
			action.Project = &project
		}

		plan.Mirror = append(plan.Mirror, action)
	}

	for _, project := range mirrors {
		if _, found := sourceNames[strings.ToLower(project.Name)]; found {
			continue
		}
		if _, found := exclude[project.Name]; found {
			continue
		}

		plan.Prune = append(plan.Prune, project)
	}

	return plan
}
