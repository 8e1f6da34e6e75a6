package sync

import (
	"testing"

	"gitr-mirror/vcs/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilePlansCreationForMissingMirror(t *testing.T) {
	catalog := []repository.RepositoryRef{{Owner: "alice", Name: "foo"}}

	plan := Reconcile(catalog, nil, nil)

	require.Len(t, plan.Mirror, 1)
	assert.Nil(t, plan.Mirror[0].Project)
	assert.Equal(t, []repository.RepositoryRef{{Owner: "alice", Name: "foo"}}, plan.Creations())
	assert.Empty(t, plan.Prune)
}

func TestReconcileAlwaysReassertsSyncOnExistingMirrors(t *testing.T) {
	catalog := []repository.RepositoryRef{{Owner: "alice", Name: "foo"}}
	mirrors := []repository.MirrorProject{{Id: 10, Name: "foo"}}

	plan := Reconcile(catalog, mirrors, nil)

	require.Len(t, plan.Mirror, 1)
	require.NotNil(t, plan.Mirror[0].Project)
	assert.Equal(t, int64(10), plan.Mirror[0].Project.Id)
	assert.Empty(t, plan.Creations())
}

func TestReconcileMatchesNamesCaseInsensitively(t *testing.T) {
	catalog := []repository.RepositoryRef{{Owner: "alice", Name: "Foo"}}
	mirrors := []repository.MirrorProject{{Id: 10, Name: "foo"}}

	plan := Reconcile(catalog, mirrors, nil)

	assert.Empty(t, plan.Creations(), "a case-variant name is the same mirror project")
	assert.Empty(t, plan.Prune)
}

func TestReconcileCollapsesSourcesSharingAMirrorName(t *testing.T) {
	catalog := []repository.RepositoryRef{
		{Owner: "alice", Name: "foo"},
		{Owner: "bob", Name: "Foo"},
	}

	plan := Reconcile(catalog, nil, nil)

	require.Len(t, plan.Mirror, 1, "one mirror name must yield one action, never two concurrent ones")
	assert.Equal(t, repository.RepositoryRef{Owner: "alice", Name: "foo"}, plan.Mirror[0].Ref, "first seen wins")
}

func TestReconcileNeverCreatesHiddenRepositories(t *testing.T) {
	catalog := []repository.RepositoryRef{
		{Owner: "alice", Name: ".github"},
		{Owner: "alice", Name: "foo"},
	}

	plan := Reconcile(catalog, nil, nil)

	assert.Equal(t, []repository.RepositoryRef{{Owner: "alice", Name: "foo"}}, plan.Creations())
}

func TestReconcileKeepsHiddenMirrorsOutOfPruneWhilePresent(t *testing.T) {
	catalog := []repository.RepositoryRef{{Owner: "alice", Name: ".github"}}
	mirrors := []repository.MirrorProject{{Id: 10, Name: ".github"}}

	plan := Reconcile(catalog, mirrors, nil)

	assert.Empty(t, plan.Mirror)
	assert.Empty(t, plan.Prune, "a hidden name still counts as present in the source")
}

func TestReconcileMarksAbsentMirrorsAsPruneCandidates(t *testing.T) {
	mirrors := []repository.MirrorProject{
		{Id: 10, Name: "gone"},
		{Id: 11, Name: "mirror-scripts"},
	}
	exclude := map[string]struct{}{"mirror-scripts": {}}

	plan := Reconcile(nil, mirrors, exclude)

	require.Len(t, plan.Prune, 1)
	assert.Equal(t, "gone", plan.Prune[0].Name)
}
