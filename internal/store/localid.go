package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalIDPrefix marks a record as created locally and not yet pushed to the
// backend. It is the sole sync-state signal: the reconciler selects records
// by this prefix and rewrites their ids once the backend assigns its own.
const LocalIDPrefix = "local_"

// NewLocalID returns an id guaranteed distinct from any server-issued id.
func NewLocalID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d_%s", LocalIDPrefix, time.Now().UnixMilli(), suffix)
}

// IsLocalID reports whether the id was generated by NewLocalID and is
// therefore not authoritative yet.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
