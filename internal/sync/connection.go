package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/models"
)

var (
	// ErrSelfConnection is returned when a user targets themselves.
	ErrSelfConnection = errors.New("cannot connect to yourself")
)

// ConnectionSync manages the friend-request lifecycle in the public store:
// notConnected -> pending (directional) -> accepted, with removal via
// deletion. It also reconciles duplicate edges and maintains the
// notification subscriptions.
type ConnectionSync struct {
	mgr    *Manager
	cache  *ProfileCache
	logger logging.Logger

	// now is replaceable so tests can control updatedAt ordering.
	now func() time.Time
}

func NewConnectionSync(mgr *Manager, cache *ProfileCache, logger logging.Logger) *ConnectionSync {
	return &ConnectionSync{
		mgr:    mgr,
		cache:  cache,
		logger: logger.With("service", "connectionSync"),
		now:    time.Now,
	}
}

// SendRequest creates a pending directed edge from -> to, caching both
// parties' names for offline display. If a connection already exists in
// either direction, the existing one is returned unchanged.
func (s *ConnectionSync) SendRequest(ctx context.Context, from, to *models.User) (*models.Connection, error) {
	if from.ID == to.ID {
		return nil, ErrSelfConnection
	}

	existing, err := s.ConnectionBetween(ctx, from.ID, to.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	conn := &models.Connection{
		ID:              uuid.NewString(),
		FromUserID:      from.ID,
		ToUserID:        to.ID,
		Status:          models.ConnectionPending,
		FromUsername:    from.Username,
		FromDisplayName: from.DisplayName,
		ToUsername:      to.Username,
		ToDisplayName:   to.DisplayName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.save(ctx, conn); err != nil {
		return nil, err
	}
	s.invalidate(conn)
	return conn, nil
}

// Accept mutates the pending edge to accepted in place; direction does not
// flip. The updated timestamp is bumped so reconciliation prefers this
// record.
func (s *ConnectionSync) Accept(ctx context.Context, conn *models.Connection) error {
	conn.Status = models.ConnectionAccepted
	conn.UpdatedAt = s.now()
	if err := s.save(ctx, conn); err != nil {
		return err
	}
	s.invalidate(conn)
	return nil
}

// Remove deletes the edge (both rejection of a pending request and removal
// of an accepted friend). Deleting an already-deleted edge is not an error.
func (s *ConnectionSync) Remove(ctx context.Context, conn *models.Connection) error {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	if err := pub.Delete(ctx, cloudstore.RecordID{Name: conn.ID}); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	s.invalidate(conn)
	return nil
}

// FetchConnections returns all connections involving userID: two predicate
// queries (user as sender, user as recipient) issued concurrently, merged
// with deduplication by connection id, then reconciled so callers never
// observe more than one edge per unordered user pair.
func (s *ConnectionSync) FetchConnections(ctx context.Context, userID string) ([]*models.Connection, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}

	var fromRecs, toRecs []*cloudstore.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fromRecs, err = pub.Query(gctx, RecordTypeConnection, cloudstore.ZoneID{}, cloudstore.Eq("fromUserId", userID))
		return err
	})
	g.Go(func() error {
		var err error
		toRecs, err = pub.Query(gctx, RecordTypeConnection, cloudstore.ZoneID{}, cloudstore.Eq("toUserId", userID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var conns []*models.Connection
	for _, rec := range append(fromRecs, toRecs...) {
		conn, err := decodeConnection(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable connection record", "recordName", rec.ID.Name, "err", err)
			continue
		}
		if _, ok := seen[conn.ID]; ok {
			continue
		}
		seen[conn.ID] = struct{}{}
		conns = append(conns, conn)
	}

	return s.reconcileDuplicates(ctx, pub, conns), nil
}

// reconcileDuplicates groups connections by their unordered participant
// pair and, for any pair with more than one record, keeps the most recently
// updated one and deletes the rest remotely. Concurrent accept/reject races
// and retried writes are the usual source of such duplicates.
func (s *ConnectionSync) reconcileDuplicates(ctx context.Context, pub cloudstore.Database, conns []*models.Connection) []*models.Connection {
	byPair := make(map[string]*models.Connection)
	var order []string

	for _, conn := range conns {
		a, b := conn.InvolvedUsers()
		pair := a + "|" + b
		best, ok := byPair[pair]
		if !ok {
			byPair[pair] = conn
			order = append(order, pair)
			continue
		}

		loser := conn
		if conn.UpdatedAt.After(best.UpdatedAt) {
			byPair[pair] = conn
			loser = best
		}
		if err := pub.Delete(ctx, cloudstore.RecordID{Name: loser.ID}); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "failed to delete duplicate connection", "connectionId", loser.ID, "err", err)
		}
	}

	out := make([]*models.Connection, 0, len(order))
	for _, pair := range order {
		out = append(out, byPair[pair])
	}
	return out
}

// ConnectionBetween looks for an edge in either direction, short-circuiting
// on the first match. (nil, nil) means the users are not connected.
func (s *ConnectionSync) ConnectionBetween(ctx context.Context, userA, userB string) (*models.Connection, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return nil, err
	}

	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		recs, err := pub.Query(ctx, RecordTypeConnection, cloudstore.ZoneID{},
			cloudstore.Eq("fromUserId", pair[0]), cloudstore.Eq("toUserId", pair[1]))
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			conn, err := decodeConnection(rec)
			if err != nil {
				s.logger.Warn(ctx, "skipping undecodable connection record", "recordName", rec.ID.Name, "err", err)
				continue
			}
			return conn, nil
		}
	}
	return nil, nil
}

// RecordReferralSignup appends the audit record for a signup, then
// auto-friends the referrer and the new user. Idempotent against retries:
// the audit record name is derived from the new-user id and checked before
// insert.
func (s *ConnectionSync) RecordReferralSignup(ctx context.Context, referrer, newUser *models.User) error {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}

	id := cloudstore.RecordID{Name: ReferralRecordName(newUser.ID)}
	_, err = pub.Fetch(ctx, id)
	if err == nil {
		return nil // already recorded
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	rec := cloudstore.NewRecord(RecordTypeReferralSignup, id)
	encodeReferralSignup(rec, &models.ReferralSignup{
		ReferrerID: referrer.ID,
		NewUserID:  newUser.ID,
		CreatedAt:  s.now(),
	})
	if _, err := pub.Save(ctx, rec); err != nil {
		return err
	}

	if err := s.autoFriend(ctx, referrer, newUser); err != nil {
		return fmt.Errorf("auto-friend after referral: %w", err)
	}
	return nil
}

// autoFriend creates an already-accepted connection between referrer and
// new user, skipping self-referrals and pairs that are already connected in
// either direction.
func (s *ConnectionSync) autoFriend(ctx context.Context, referrer, newUser *models.User) error {
	if referrer.ID == newUser.ID {
		return nil
	}

	existing, err := s.ConnectionBetween(ctx, referrer.ID, newUser.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := s.now()
	conn := &models.Connection{
		ID:              uuid.NewString(),
		FromUserID:      referrer.ID,
		ToUserID:        newUser.ID,
		Status:          models.ConnectionAccepted,
		FromUsername:    referrer.Username,
		FromDisplayName: referrer.DisplayName,
		ToUsername:      newUser.Username,
		ToDisplayName:   newUser.DisplayName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.save(ctx, conn); err != nil {
		return err
	}
	s.invalidate(conn)
	return nil
}

// CountReferrals returns how many signups credit the referrer.
func (s *ConnectionSync) CountReferrals(ctx context.Context, referrerID string) (int, error) {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return 0, err
	}
	recs, err := pub.Query(ctx, RecordTypeReferralSignup, cloudstore.ZoneID{}, cloudstore.Eq("referrerId", referrerID))
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *ConnectionSync) save(ctx context.Context, conn *models.Connection) error {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	id := cloudstore.RecordID{Name: conn.ID}
	rec, err := fetchOrNew(ctx, pub, RecordTypeConnection, id)
	if err != nil {
		return err
	}
	encodeConnection(rec, conn)
	if _, err := pub.Save(ctx, rec); err != nil {
		return err
	}
	conn.RecordName = id.Name
	return nil
}

func (s *ConnectionSync) invalidate(conn *models.Connection) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(conn.FromUserID)
	s.cache.Invalidate(conn.ToUserID)
}

// Subscribe registers the three notification subscriptions for a user.
// Each is deleted and recreated rather than updated in place, so the
// predicate and payload shape are always current; a missing old
// subscription is ignored.
func (s *ConnectionSync) Subscribe(ctx context.Context, userID string) error {
	subs := []*cloudstore.Subscription{
		{
			ID:         SubscriptionID(TopicIncomingRequest, userID),
			RecordType: RecordTypeConnection,
			Filters: []cloudstore.Filter{
				cloudstore.Eq("toUserId", userID),
				cloudstore.Eq("status", string(models.ConnectionPending)),
			},
			FiresOn: []cloudstore.EventType{cloudstore.EventCreate},
		},
		{
			ID:         SubscriptionID(TopicRequestAccepted, userID),
			RecordType: RecordTypeConnection,
			Filters: []cloudstore.Filter{
				cloudstore.Eq("fromUserId", userID),
				cloudstore.Eq("status", string(models.ConnectionAccepted)),
			},
			FiresOn: []cloudstore.EventType{cloudstore.EventUpdate},
		},
		{
			ID:         SubscriptionID(TopicReferralSignup, userID),
			RecordType: RecordTypeReferralSignup,
			Filters: []cloudstore.Filter{
				cloudstore.Eq("referrerId", userID),
			},
			FiresOn: []cloudstore.EventType{cloudstore.EventCreate},
		},
	}

	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := pub.DeleteSubscription(ctx, sub.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if err := pub.SaveSubscription(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe removes the user's subscriptions; unsubscribing when not
// subscribed is swallowed with a log.
func (s *ConnectionSync) Unsubscribe(ctx context.Context, userID string) error {
	pub, err := s.mgr.PublicDatabase()
	if err != nil {
		return err
	}
	for _, topic := range []Topic{TopicIncomingRequest, TopicRequestAccepted, TopicReferralSignup} {
		id := SubscriptionID(topic, userID)
		if err := pub.DeleteSubscription(ctx, id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				s.logger.Debug(ctx, "subscription already absent", "subscriptionId", id)
				continue
			}
			return err
		}
	}
	return nil
}
