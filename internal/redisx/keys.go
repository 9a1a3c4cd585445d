package redisx

import "time"

const (
	// Collection document: pos:{terminal}:collection:{name} -> JSON
	KeyCollection = "pos:%s:collection:%s"

	// Session lease: pos:{terminal}:lease -> holder
	KeyLease = "pos:%s:lease"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
