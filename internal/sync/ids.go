package sync

// Deterministic record-name derivations. These are the wire contract for
// finding records without a separate index; write and read paths must share
// them, so they live here as pure functions.

// UserRecordName derives a user's profile record name from the
// backend-assigned account identity.
func UserRecordName(backendID string) string {
	return "user_" + backendID
}

// ProfileImageRecordName names the profile-photo record for a user.
func ProfileImageRecordName(userID string) string {
	return "profileImage_" + userID
}

// ReferralRecordName names the referral-signup audit record for a new user.
// One record per new-user id makes signup recording idempotent.
func ReferralRecordName(newUserID string) string {
	return "referral_" + newUserID
}

// Topic is a push-subscription topic.
type Topic string

const (
	// TopicIncomingRequest fires on friend requests addressed to the user.
	TopicIncomingRequest Topic = "incoming-request"
	// TopicRequestAccepted fires when a request the user sent is accepted.
	TopicRequestAccepted Topic = "request-accepted"
	// TopicReferralSignup fires on referral signups crediting the user.
	TopicReferralSignup Topic = "referral-signup"
)

// SubscriptionID derives the deterministic subscription id for a topic and
// user.
func SubscriptionID(topic Topic, userID string) string {
	return string(topic) + "-" + userID
}
