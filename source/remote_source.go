package source

import "time"

// RemoteSource reserves the PriorityRemote band for a future networked
// secret-store client (spec.md §1 Non-goals, §9 Open Questions). It is a
// real Source value — it registers, sorts, and participates in
// IterByPriority like any other — but Load always fails with
// ErrRemoteUnimplemented, since no transport is implemented.
type RemoteSource struct {
	id       ID
	provider string
}

// NewRemoteSource reserves a remote source slot under the given provider
// name (e.g. "vault", "aws-secrets-manager"). It exists so Registry
// ordering and capability-filtering tests can exercise the Remote band
// without a real network dependency.
func NewRemoteSource(id, provider string) *RemoteSource {
	return &RemoteSource{id: ID(id), provider: provider}
}

func (r *RemoteSource) ID() ID             { return r.id }
func (r *RemoteSource) SourceType() Type   { return TypeRemote }
func (r *RemoteSource) Priority() Priority { return PriorityRemote }
func (r *RemoteSource) Capabilities() Capabilities {
	return CapRead | CapAsync
}
func (r *RemoteSource) HasChanged() bool { return false }
func (r *RemoteSource) Invalidate()      {}

func (r *RemoteSource) Load() (Snapshot, error) {
	return Snapshot{SourceID: r.id, Timestamp: time.Now()}, ErrRemoteUnimplemented
}
