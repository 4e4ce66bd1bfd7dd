package models

import "time"

type User struct {
	ID          string
	Username    string // normalized lowercase, unique
	DisplayName string
	Email       string

	// ReferralCode is a unique 6-character uppercase alphanumeric code,
	// empty until provisioned.
	ReferralCode string

	// Avatar: emoji+color or an uploaded photo. The presentation layer
	// treats these as mutually exclusive; they are stored independently.
	AvatarEmoji   string
	AvatarColor   string
	PhotoAssetKey string

	// Profile-image sync metadata: the remote record name of the uploaded
	// photo and its last modification time, used to decide whether a
	// re-upload is needed.
	ProfileImageRecordName string
	ProfileImageModifiedAt *time.Time

	// RecordName is the remote sync handle of the profile record.
	RecordName string

	CreatedAt time.Time
}
