package sync

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// GraceState records when each mirror project was last confirmed present in
// the source catalog (or excluded from pruning). It is persisted as a flat
// JSON document mapping project name to an RFC 3339 timestamp.
type GraceState map[string]time.Time

// LoadState reads the persisted state. A missing or unreadable document
// yields an empty state: the first run has no history, and losing history
// only delays pruning, it never causes a premature deletion.
func LoadState(path string) GraceState {
	state := GraceState{}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed reading state, starting empty")
		}
		return state
	}

	var document map[string]string
	if err := json.Unmarshal(raw, &document); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed parsing state, starting empty")
		return state
	}

	for name, stamp := range document {
		lastSeen, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			log.Warn().Str("name", name).Str("last_seen", stamp).Msg("Dropping unparseable state entry")
			continue
		}
		state[name] = lastSeen
	}

	return state
}

// Save overwrites the persisted state with the complete next state. Callers
// hold the only reference within a run; there is no merge.
func (state GraceState) Save(path string) error {
	document := make(map[string]string, len(state))
	for name, lastSeen := range state {
		document[name] = lastSeen.UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return err
	}

	return os.WriteFile(path, raw, 0o644)
}
