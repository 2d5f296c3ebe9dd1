package registry

import (
	"time"

	"sieve/internal/fingerprint"
)

// Entry is one accepted image: its fingerprint and where the artifact lives.
type Entry struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	StorageRef  string                  `json:"storage_ref"`
	// DHash is the hex difference hash of the canonical image, empty when
	// it could not be computed.
	DHash     string    `json:"dhash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Match pairs an entry with its dHash distance from a probe image.
type Match struct {
	Entry    Entry `json:"entry"`
	Distance int   `json:"distance"`
}

// Orphan reasons.
const (
	ReasonDuplicateKey     = "duplicate_key"
	ReasonCanceled         = "canceled"
	ReasonStoreUnavailable = "store_unavailable"
)

// Orphan is an uploaded artifact with no registry entry pointing at it.
type Orphan struct {
	ID          int64                   `json:"id"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	StorageRef  string                  `json:"storage_ref"`
	Reason      string                  `json:"reason"`
	CreatedAt   time.Time               `json:"created_at"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
}

// Resolved reports whether an operator has dealt with the orphan.
func (o Orphan) Resolved() bool {
	return o.ResolvedAt != nil
}

// Health captures diagnostic information about the registry database.
type Health struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	Integrity        string `json:"integrity"`
	Entries          int    `json:"entries"`
	OpenOrphans      int    `json:"open_orphans"`
	Error            string `json:"error,omitempty"`
}
