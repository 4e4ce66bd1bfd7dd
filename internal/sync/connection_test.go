package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/models"
)

func newConnectionSyncForTest(t *testing.T) (*testEnv, *ConnectionSync) {
	t.Helper()
	env := newTestEnv(t, "backend-1")
	return env, NewConnectionSync(env.mgr, NewProfileCache(time.Minute, 16), testLogger())
}

func userFixture(id string) *models.User {
	return &models.User{ID: id, Username: "user-" + id, DisplayName: "User " + id}
}

func TestConnectionSync_SendRequest(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, bob := userFixture("alice"), userFixture("bob")

	conn, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionPending, conn.Status)
	assert.Equal(t, "alice", conn.FromUserID)
	assert.Equal(t, "bob", conn.ToUserID)
	assert.Equal(t, "user-alice", conn.FromUsername)
	assert.Equal(t, "User bob", conn.ToDisplayName)
}

func TestConnectionSync_SendRequestToSelf(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice := userFixture("alice")

	_, err := s.SendRequest(ctx, alice, alice)
	assert.ErrorIs(t, err, ErrSelfConnection)
}

func TestConnectionSync_SendRequestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, bob := userFixture("alice"), userFixture("bob")

	first, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	// Repeat in the same direction and in reverse: both return the
	// existing edge instead of creating a second one.
	again, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reverse, err := s.SendRequest(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, reverse.ID)

	conns, err := s.FetchConnections(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestConnectionSync_EdgesKeyedByAppUserID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "backend-acct-42")
	users := NewUserSync(env.mgr, env.assets, testLogger())
	conns := NewConnectionSync(env.mgr, nil, testLogger())

	me, err := users.FetchOrCreateCurrentUser(ctx, "kate", "Kate")
	require.NoError(t, err)

	other := &models.User{ID: "friend-1", Username: "sam", RecordName: UserRecordName("backend-other")}
	require.NoError(t, users.Save(ctx, other))

	_, err = conns.SendRequest(ctx, me, other)
	require.NoError(t, err)

	// The backend account id is not a connection key; only the profile's
	// own id finds the edge.
	byBackend, err := conns.FetchConnections(ctx, "backend-acct-42")
	require.NoError(t, err)
	assert.Empty(t, byBackend)

	byUser, err := conns.FetchConnections(ctx, me.ID)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestConnectionSync_AcceptKeepsDirection(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, bob := userFixture("alice"), userFixture("bob")

	conn, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	require.NoError(t, s.Accept(ctx, conn))

	got, err := s.ConnectionBetween(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ConnectionAccepted, got.Status)
	assert.Equal(t, "alice", got.FromUserID, "accepting must not flip direction")
	assert.Equal(t, "bob", got.ToUserID)
}

func TestConnectionSync_RemoveTolerant(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, bob := userFixture("alice"), userFixture("bob")

	conn, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, conn))

	got, err := s.ConnectionBetween(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Removing an already-removed edge is fine.
	assert.NoError(t, s.Remove(ctx, conn))
}

func TestConnectionSync_FetchConnectionsMergesBothDirections(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, bob, carol := userFixture("alice"), userFixture("bob"), userFixture("carol")

	_, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	_, err = s.SendRequest(ctx, carol, alice)
	require.NoError(t, err)

	conns, err := s.FetchConnections(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conns, 2)

	others := map[string]bool{}
	for _, c := range conns {
		others[c.Other("alice")] = true
	}
	assert.True(t, others["bob"])
	assert.True(t, others["carol"])
}

func TestConnectionSync_ReconcilesDuplicateEdges(t *testing.T) {
	ctx := context.Background()
	env, s := newConnectionSyncForTest(t)
	pub := env.publicDB(t)

	// Three records for the same unordered pair, as left behind by retried
	// concurrent writes. Different updatedAt values decide the survivor.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range []*models.Connection{
		{ID: "conn-old", FromUserID: "alice", ToUserID: "bob", Status: models.ConnectionPending, UpdatedAt: base},
		{ID: "conn-newest", FromUserID: "bob", ToUserID: "alice", Status: models.ConnectionAccepted, UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "conn-mid", FromUserID: "alice", ToUserID: "bob", Status: models.ConnectionPending, UpdatedAt: base.Add(time.Hour)},
	} {
		rec := cloudstore.NewRecord(RecordTypeConnection, cloudstore.RecordID{Name: c.ID})
		c.CreatedAt = base
		encodeConnection(rec, c)
		_, err := pub.Save(ctx, rec)
		require.NoError(t, err, "fixture %d", i)
	}

	conns, err := s.FetchConnections(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conns, 1, "duplicates must collapse to one edge per pair")
	assert.Equal(t, "conn-newest", conns[0].ID)
	assert.Equal(t, models.ConnectionAccepted, conns[0].Status)

	// The losers are deleted remotely, so a second fetch sees a clean store.
	recs, err := pub.Query(ctx, RecordTypeConnection, cloudstore.ZoneID{}, cloudstore.Eq("fromUserId", "alice"))
	require.NoError(t, err)
	assert.Empty(t, recs, "losing duplicates with alice as sender should be gone")

	conns, err = s.FetchConnections(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestConnectionSync_ReferralSignupFlow(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	referrer := userFixture("alice")
	newUser := userFixture("dana")

	require.NoError(t, s.RecordReferralSignup(ctx, referrer, newUser))

	count, err := s.CountReferrals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Auto-friend: already accepted, no request step.
	conn, err := s.ConnectionBetween(ctx, "alice", "dana")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, models.ConnectionAccepted, conn.Status)

	// Retried signup recording is idempotent.
	require.NoError(t, s.RecordReferralSignup(ctx, referrer, newUser))
	count, err = s.CountReferrals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	conns, err := s.FetchConnections(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestConnectionSync_ReferralSignupSelfDoesNotFriend(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice := userFixture("alice")

	require.NoError(t, s.RecordReferralSignup(ctx, alice, alice))

	conn, err := s.ConnectionBetween(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnectionSync_ReferralSignupKeepsExistingConnection(t *testing.T) {
	ctx := context.Background()
	_, s := newConnectionSyncForTest(t)
	alice, dana := userFixture("alice"), userFixture("dana")

	pending, err := s.SendRequest(ctx, dana, alice)
	require.NoError(t, err)

	require.NoError(t, s.RecordReferralSignup(ctx, alice, dana))

	conn, err := s.ConnectionBetween(ctx, "alice", "dana")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, pending.ID, conn.ID, "existing edge must not be replaced")
	assert.Equal(t, models.ConnectionPending, conn.Status)
}

func TestConnectionSync_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	env, s := newConnectionSyncForTest(t)
	pub := env.publicDB(t)

	require.NoError(t, s.Subscribe(ctx, "alice"))
	subs := pub.Subscriptions()
	require.Len(t, subs, 3)

	ids := map[string]*cloudstore.Subscription{}
	for _, sub := range subs {
		ids[sub.ID] = sub
	}
	incoming := ids[SubscriptionID(TopicIncomingRequest, "alice")]
	require.NotNil(t, incoming)
	assert.Equal(t, RecordTypeConnection, incoming.RecordType)
	assert.Equal(t, []cloudstore.EventType{cloudstore.EventCreate}, incoming.FiresOn)

	accepted := ids[SubscriptionID(TopicRequestAccepted, "alice")]
	require.NotNil(t, accepted)
	assert.Equal(t, []cloudstore.EventType{cloudstore.EventUpdate}, accepted.FiresOn)

	referral := ids[SubscriptionID(TopicReferralSignup, "alice")]
	require.NotNil(t, referral)
	assert.Equal(t, RecordTypeReferralSignup, referral.RecordType)

	// Re-subscribing recreates rather than stacks.
	require.NoError(t, s.Subscribe(ctx, "alice"))
	assert.Len(t, pub.Subscriptions(), 3)

	require.NoError(t, s.Unsubscribe(ctx, "alice"))
	assert.Empty(t, pub.Subscriptions())

	// Unsubscribing when not subscribed is not an error.
	assert.NoError(t, s.Unsubscribe(ctx, "alice"))
}
