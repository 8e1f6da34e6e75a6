package constants

import "time"

// Repositories whose name starts with this prefix (e.g. .github) are never mirrored
const HIDDEN_PREFIX = "."

const PAGE_SIZE = 100

// Source API rate budget handling: suspend listing when fewer than
// RATE_THRESHOLD requests remain, until the reset time plus RATE_MARGIN.
const RATE_THRESHOLD = 10
const RATE_MARGIN = 30 * time.Second
const RATE_MIN_SLEEP = 5 * time.Second

type ContextKey int

const (
	DRY_RUN ContextKey = iota
)
