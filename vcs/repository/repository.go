package repository

import (
	"fmt"
	"strings"

	"gitr-mirror/constants"
)

// RepositoryRef identifies a source repository. The canonical identity used
// for deduplication across listing endpoints is Owner/Name, case-sensitive.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (ref RepositoryRef) FullName() string {
	return fmt.Sprintf("%s/%s", ref.Owner, ref.Name)
}

// Hidden reports whether the repository uses the private naming convention
// (leading dot, e.g. .github) and must never be mirrored.
func (ref RepositoryRef) Hidden() bool {
	return strings.HasPrefix(ref.Name, constants.HIDDEN_PREFIX)
}

// MirrorProject is a project record in the mirror namespace. Id is assigned
// by the mirror host and stable for the project's lifetime; Namespace is the
// group or organization holding it.
type MirrorProject struct {
	Id        int64
	Name      string
	Namespace string
}

// SyncConfig is the desired pull-mirror state for a mirror project. It is a
// full description, not a delta: applying it twice is a no-op.
type SyncConfig struct {
	// RemoteUrl embeds the source credential; never log it raw.
	RemoteUrl             string
	Enabled               bool
	OnlyProtectedBranches bool
	KeepDivergentRefs     bool
}
