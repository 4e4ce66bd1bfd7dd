package models

import "time"

// CoverMode selects how a collection cover is displayed.
type CoverMode string

const (
	CoverModeImage  CoverMode = "image"
	CoverModeMosaic CoverMode = "mosaic"
	CoverModeEmoji  CoverMode = "emoji"
)

type Collection struct {
	ID          string
	Name        string
	Description string
	Emoji       string
	Color       string
	OwnerID     string

	// RecipeIDs is the ordered member list. It is serialized as an embedded
	// encoded blob on the remote record, not a relational join.
	RecipeIDs []string

	Visibility    Visibility
	CoverMode     CoverMode
	CoverAssetKey string

	RecordName string

	CreatedAt time.Time
	UpdatedAt time.Time
}
