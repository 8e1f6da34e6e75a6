package sync

import (
	"time"

	"gitr-mirror/vcs/repository"
)

// EvaluatePrune applies the grace-period policy for one run. It returns the
// projects whose deletion is due and the complete next state to persist.
//
// Every mirror project that is not a prune candidate (present in the source
// catalog, or excluded) has its last-seen timestamp reset to now. A
// candidate seen missing for the first time is recorded at now and, unless
// the grace period is zero, left alone; a candidate with history becomes
// deletable once now minus last-seen reaches the grace period. State
// entries for projects that no longer exist in the mirror namespace are
// dropped, so a later recreation starts a fresh grace clock.
//
// Pure bookkeeping: no clock reads, no API calls. The caller deletes and
// persists.
func EvaluatePrune(mirrors, candidates []repository.MirrorProject, state GraceState, now time.Time, grace time.Duration) ([]repository.MirrorProject, GraceState) {
	candidateNames := map[string]struct{}{}
	for _, project := range candidates {
		candidateNames[project.Name] = struct{}{}
	}

	next := GraceState{}
	for _, project := range mirrors {
		if _, isCandidate := candidateNames[project.Name]; !isCandidate {
			next[project.Name] = now
		}
	}

	deletable := []repository.MirrorProject{}
	for _, project := range candidates {
		lastSeen, found := state[project.Name]
		if !found {
			// First detection of the disappearance
			if grace == 0 {
				deletable = append(deletable, project)
			}
			next[project.Name] = now
			continue
		}

		next[project.Name] = lastSeen
		if now.Sub(lastSeen) >= grace {
			deletable = append(deletable, project)
		}
	}

	return deletable, next
}
