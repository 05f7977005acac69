package connections

import (
	"context"
	"time"

	"tapcard/internal/models"
	"tapcard/internal/observability"

	"golang.org/x/sync/errgroup"
)

// Snapshot is the consistent result of one reconciliation pass.
type Snapshot struct {
	Incoming []models.ConnectionRequest
	Outgoing []models.ConnectionRequest
	Statuses map[string]models.RelationshipStatus
	Peers    map[string]struct{}
}

// SnapshotInput carries the pre-fetched rows a pass merges. Keeping the
// merge pure lets the recompute contract be tested without any network code.
type SnapshotInput struct {
	// Self is the session owner's profile at fetch time.
	Self models.Profile
	// Requests are all connection requests involving the user, newest first.
	Requests []models.ConnectionRequest
	// Owned are the connection rows the user holds.
	Owned []models.Connection
	// Reverse are connection rows other users hold that point at Self's
	// email; they reveal whether a counterpart still keeps its side.
	Reverse []models.Connection
	// Profiles maps profile id to profile for every id the requests
	// reference. Missing entries are treated as deleted accounts.
	Profiles map[string]models.Profile
}

// BuildSnapshot merges pre-fetched rows into a consistent per-counterpart
// view. An accepted request only yields RelationshipAccepted while the live
// peer check passes on both sides; otherwise the stored status is stale and
// the pair collapses to none.
func BuildSnapshot(userID string, in SnapshotInput) Snapshot {
	snap := Snapshot{
		Statuses: make(map[string]models.RelationshipStatus),
		Peers:    make(map[string]struct{}),
	}

	for i := range in.Owned {
		email := in.Owned[i].CounterpartEmail
		if email == nil {
			continue
		}
		if normalized := models.NormalizeEmail(*email); normalized != "" {
			snap.Peers[normalized] = struct{}{}
		}
	}

	if len(in.Requests) == 0 {
		return snap
	}

	reverseOwners := make(map[string]struct{}, len(in.Reverse))
	for i := range in.Reverse {
		reverseOwners[in.Reverse[i].OwnerUserID] = struct{}{}
	}

	for i := range in.Requests {
		req := in.Requests[i]
		if !req.Involves(userID) {
			continue
		}
		otherID := req.CounterpartID(userID)

		// Requests arrive newest first; the newest row per counterpart wins.
		if _, seen := snap.Statuses[otherID]; !seen {
			snap.Statuses[otherID] = resolveStatus(userID, req, otherID, snap.Peers, reverseOwners, in.Profiles)
		}

		if req.TargetID == userID && req.Status == models.RequestStatusPending {
			snap.Incoming = append(snap.Incoming, req)
		}
		if req.RequesterID == userID {
			snap.Outgoing = append(snap.Outgoing, req)
		}
	}

	return snap
}

// resolveStatus applies the per-request resolution rule.
func resolveStatus(
	userID string,
	req models.ConnectionRequest,
	otherID string,
	peers map[string]struct{},
	reverseOwners map[string]struct{},
	profiles map[string]models.Profile,
) models.RelationshipStatus {
	switch req.Status {
	case models.RequestStatusAccepted:
		other, ok := profiles[otherID]
		if !ok {
			return models.RelationshipNone
		}
		if _, live := peers[other.NormalizedEmail()]; !live {
			// The user's own row is gone: connection was removed.
			return models.RelationshipNone
		}
		if _, held := reverseOwners[otherID]; !held {
			// The counterpart dropped its side; the accepted request row
			// is stale even though the user's own row survives.
			return models.RelationshipNone
		}
		return models.RelationshipAccepted
	case models.RequestStatusPending:
		if req.RequesterID == userID {
			return models.RelationshipPendingOutgoing
		}
		return models.RelationshipPendingIncoming
	case models.RequestStatusDeclined:
		return models.RelationshipDeclined
	default:
		return models.RelationshipNone
	}
}

// Reconcile runs one full fetch-and-recompute pass. Overlapping calls
// collapse: if a pass is already in flight the trigger is recorded and a
// single follow-up pass runs after the current one completes. Any fetch
// failure aborts the pass, leaves the previous state untouched, and returns
// a recoverable error so callers keep rendering stale-but-safe data.
func (s *Session) Reconcile(ctx context.Context) error {
	s.flightMu.Lock()
	if s.inFlight {
		s.rerun = true
		s.flightMu.Unlock()
		observability.ReconcileCoalesced.Inc()
		return nil
	}
	s.inFlight = true
	s.flightMu.Unlock()

	s.setLoading(true)
	defer s.setLoading(false)

	var err error
	for {
		err = s.runPass(ctx)

		s.flightMu.Lock()
		if s.rerun {
			s.rerun = false
			s.flightMu.Unlock()
			continue
		}
		s.inFlight = false
		s.flightMu.Unlock()
		return err
	}
}

func (s *Session) runPass(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()

	in, err := s.fetch(ctx)
	if err != nil {
		observability.ReconcilePasses.WithLabelValues("error").Inc()
		s.log.LogPassError(ctx, err)
		if models.IsNotFound(err) {
			return err
		}
		return models.NewUnavailableError(err)
	}

	snap := BuildSnapshot(s.userID, *in)
	s.swap(snap)

	observability.ReconcilePasses.WithLabelValues("ok").Inc()
	observability.ReconcileDuration.Observe(time.Since(start).Seconds())
	s.log.LogPass(ctx, len(snap.Incoming), len(snap.Outgoing), len(snap.Peers))
	return nil
}

// fetch gathers the rows for one pass. The first stage issues the
// independent reads concurrently and joins them; the second stage depends on
// the first's results (own email, referenced profile ids).
func (s *Session) fetch(ctx context.Context) (*SnapshotInput, error) {
	var in SnapshotInput

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		self, err := s.profiles.GetByID(gctx, s.userID)
		if err != nil {
			return err
		}
		in.Self = *self
		return nil
	})
	g.Go(func() error {
		requests, err := s.requests.ListForUser(gctx, s.userID)
		if err != nil {
			return err
		}
		in.Requests = requests
		return nil
	})
	g.Go(func() error {
		owned, err := s.connections.ListByOwner(gctx, s.userID)
		if err != nil {
			return err
		}
		in.Owned = owned
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := referencedProfileIDs(s.userID, in.Requests)

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		reverse, err := s.connections.ListByCounterpartEmail(gctx, in.Self.Email)
		if err != nil {
			return err
		}
		in.Reverse = reverse
		return nil
	})
	g.Go(func() error {
		profiles, err := s.profiles.GetByIDs(gctx, ids)
		if err != nil {
			return err
		}
		in.Profiles = profiles
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &in, nil
}

// referencedProfileIDs collects the distinct counterpart ids the requests
// mention.
func referencedProfileIDs(userID string, requests []models.ConnectionRequest) []string {
	seen := make(map[string]struct{}, len(requests))
	var ids []string
	for i := range requests {
		otherID := requests[i].CounterpartID(userID)
		if otherID == userID {
			continue
		}
		if _, ok := seen[otherID]; ok {
			continue
		}
		seen[otherID] = struct{}{}
		ids = append(ids, otherID)
	}
	return ids
}
