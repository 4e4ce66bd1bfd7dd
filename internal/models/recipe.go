// Package models holds the domain entities mirrored to the cloud store.
// Every entity carries a stable UUID independent of the remote record
// identifier; the remote identifier is kept alongside as an opaque sync
// handle.
package models

import "time"

// Visibility controls which store partition a record is mirrored into.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
)

// Ingredient is one line of a recipe's ingredient list. Quantity and Unit
// are free-form and optional.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// Step is one ordered instruction. TimerSeconds holds optional countdown
// timers embedded in the step text.
type Step struct {
	Text         string `json:"text"`
	TimerSeconds []int  `json:"timerSeconds,omitempty"`
}

// NutritionFacts are optional per-serving nutrition values.
type NutritionFacts struct {
	Calories float64 `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
}

type Recipe struct {
	ID           string
	Title        string
	Ingredients  []Ingredient
	Steps        []Step
	Yield        string
	TotalMinutes int // 0 = unset
	Tags         []string
	Nutrition    *NutritionFacts
	Visibility   Visibility
	OwnerID      string

	// ImageAssetKey references the recipe image in blob storage, if any.
	ImageAssetKey string

	// Provenance, populated when the recipe was saved from another user.
	OriginalRecipeID    string
	OriginalCreatorID   string
	OriginalCreatorName string
	SavedAt             *time.Time

	// RecordName is the sync handle of the private-partition copy. The
	// shared-partition copy always uses the recipe ID itself, so the two
	// handles differ even though the UUID is the same.
	RecordName string

	CreatedAt time.Time
	UpdatedAt time.Time
}
