// Package backup keeps versioned, rotating snapshots of the whole client state for
// disaster recovery when neither the server nor the local cache can serve data.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/crypto"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// Version is the snapshot format written by this build.
const Version = 1

// DefaultKeep is the number of timestamped copies retained besides "latest".
const DefaultKeep = 5

// Snapshot is the full recoverable client state.
type Snapshot struct {
	Version           int             `json:"version"`
	Projects          []model.Project `json:"projects"`
	CompletedSessions []model.Session `json:"completedSessions"`
	ActiveProject     *uuid.UUID      `json:"activeProject"`
	ActiveSessions    []model.Session `json:"activeSessions"`
	LastBackup        time.Time       `json:"lastBackup"`
}

// Empty reports whether the snapshot carries no projects and no sessions.
func (s Snapshot) Empty() bool {
	return len(s.Projects) == 0 && len(s.CompletedSessions) == 0 && len(s.ActiveSessions) == 0
}

// Store persists snapshots.
type Store interface {
	// Save writes s as the latest snapshot and as a timestamped copy, pruning old copies.
	Save(ctx context.Context, s Snapshot) error
	// Latest returns the most recent snapshot: errs.ErrNotFound if none, errs.ErrCorrupt if unreadable.
	Latest(ctx context.Context) (Snapshot, error)
	// History lists timestamps of retained copies, newest first.
	History(ctx context.Context) ([]time.Time, error)
	// At loads the copy taken at ts.
	At(ctx context.Context, ts time.Time) (Snapshot, error)
}

type envelope struct {
	Checksum string          `json:"checksum"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// Encode serializes s inside a checksummed envelope.
func Encode(s Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = Version
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Checksum: crypto.Sum(body), Snapshot: body})
}

// Decode parses an envelope, rejecting checksum mismatches and unknown versions as corrupt.
func Decode(b []byte) (Snapshot, error) {
	const op = "backup.decode"
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Snapshot{}, errs.E(errs.KindCorrupt, op, err)
	}
	if !crypto.Verify(env.Snapshot, env.Checksum) {
		return Snapshot{}, errs.E(errs.KindCorrupt, op, fmt.Errorf("checksum mismatch"))
	}
	var s Snapshot
	if err := json.Unmarshal(env.Snapshot, &s); err != nil {
		return Snapshot{}, errs.E(errs.KindCorrupt, op, err)
	}
	if s.Version > Version {
		return Snapshot{}, errs.E(errs.KindCorrupt, op, fmt.Errorf("unsupported snapshot version %d", s.Version))
	}
	return s, nil
}

func stamp(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

func parseStamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
