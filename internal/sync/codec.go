package sync

import (
	"encoding/json"
	"fmt"

	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/common"
	"github.com/nadavital/cauldron/internal/models"
)

// Remote record types. These names are the wire contract with existing
// stored data and must not change.
const (
	RecordTypeUser           = "User"
	RecordTypeRecipe         = "Recipe"
	RecordTypeSharedRecipe   = "SharedRecipe"
	RecordTypeCollection     = "Collection"
	RecordTypeConnection     = "Connection"
	RecordTypeProfileImage   = "ProfileImage"
	RecordTypeReferralSignup = "ReferralSignup"
)

// Asset field keys.
const (
	assetKeyImage = "image"
	assetKeyCover = "cover"
	assetKeyPhoto = "photo"
)

// Structured fields (ingredient/step/tag/recipe-id lists) are serialized as
// opaque encoded blobs: they are never filtered on, only retrieved whole.

func encodeRecipe(rec *cloudstore.Record, r *models.Recipe) error {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return fmt.Errorf("%w: encode ingredients: %v", common.ErrInvalidRecord, err)
	}
	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return fmt.Errorf("%w: encode steps: %v", common.ErrInvalidRecord, err)
	}
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("%w: encode tags: %v", common.ErrInvalidRecord, err)
	}

	rec.Set("recipeId", r.ID)
	rec.Set("title", r.Title)
	rec.Set("ingredientsData", ingredients)
	rec.Set("stepsData", steps)
	rec.Set("tagsData", tags)
	rec.Set("yield", r.Yield)
	rec.Set("totalMinutes", r.TotalMinutes)
	rec.Set("visibility", string(r.Visibility))
	rec.Set("ownerId", r.OwnerID)
	rec.Set("originalRecipeId", r.OriginalRecipeID)
	rec.Set("originalCreatorId", r.OriginalCreatorID)
	rec.Set("originalCreatorName", r.OriginalCreatorName)
	rec.Set("createdAt", r.CreatedAt)
	rec.Set("updatedAt", r.UpdatedAt)
	if r.SavedAt != nil {
		rec.Set("savedAt", *r.SavedAt)
	}
	if r.Nutrition != nil {
		nutrition, err := json.Marshal(r.Nutrition)
		if err != nil {
			return fmt.Errorf("%w: encode nutrition: %v", common.ErrInvalidRecord, err)
		}
		rec.Set("nutritionData", nutrition)
	}
	if r.ImageAssetKey != "" {
		rec.SetAsset(assetKeyImage, cloudstore.Asset{Key: r.ImageAssetKey})
	}
	return nil
}

func decodeRecipe(rec *cloudstore.Record) (*models.Recipe, error) {
	id := rec.String("recipeId")
	title := rec.String("title")
	if id == "" || title == "" {
		return nil, fmt.Errorf("%w: recipe record %q missing required fields", common.ErrInvalidRecord, rec.ID.Name)
	}

	r := &models.Recipe{
		ID:                  id,
		Title:               title,
		Yield:               rec.String("yield"),
		TotalMinutes:        rec.Int("totalMinutes"),
		Visibility:          models.Visibility(rec.String("visibility")),
		OwnerID:             rec.String("ownerId"),
		OriginalRecipeID:    rec.String("originalRecipeId"),
		OriginalCreatorID:   rec.String("originalCreatorId"),
		OriginalCreatorName: rec.String("originalCreatorName"),
		RecordName:          rec.ID.Name,
	}
	if r.Visibility == "" {
		r.Visibility = models.VisibilityPrivate
	}

	if data := rec.Bytes("ingredientsData"); data != nil {
		if err := json.Unmarshal(data, &r.Ingredients); err != nil {
			return nil, fmt.Errorf("%w: decode ingredients: %v", common.ErrInvalidRecord, err)
		}
	}
	if data := rec.Bytes("stepsData"); data != nil {
		if err := json.Unmarshal(data, &r.Steps); err != nil {
			return nil, fmt.Errorf("%w: decode steps: %v", common.ErrInvalidRecord, err)
		}
	}
	if data := rec.Bytes("tagsData"); data != nil {
		if err := json.Unmarshal(data, &r.Tags); err != nil {
			return nil, fmt.Errorf("%w: decode tags: %v", common.ErrInvalidRecord, err)
		}
	}
	if data := rec.Bytes("nutritionData"); data != nil {
		r.Nutrition = &models.NutritionFacts{}
		if err := json.Unmarshal(data, r.Nutrition); err != nil {
			return nil, fmt.Errorf("%w: decode nutrition: %v", common.ErrInvalidRecord, err)
		}
	}

	if t, ok := rec.Time("createdAt"); ok {
		r.CreatedAt = t
	}
	if t, ok := rec.Time("updatedAt"); ok {
		r.UpdatedAt = t
	}
	if t, ok := rec.Time("savedAt"); ok {
		r.SavedAt = &t
	}
	if asset, ok := rec.Assets[assetKeyImage]; ok {
		r.ImageAssetKey = asset.Key
	}
	return r, nil
}

func encodeUser(rec *cloudstore.Record, u *models.User) {
	rec.Set("userId", u.ID)
	rec.Set("username", u.Username)
	rec.Set("displayName", u.DisplayName)
	rec.Set("email", u.Email)
	rec.Set("referralCode", u.ReferralCode)
	rec.Set("avatarEmoji", u.AvatarEmoji)
	rec.Set("avatarColor", u.AvatarColor)
	rec.Set("profileImageRecordName", u.ProfileImageRecordName)
	rec.Set("createdAt", u.CreatedAt)
	if u.ProfileImageModifiedAt != nil {
		rec.Set("profileImageModifiedAt", *u.ProfileImageModifiedAt)
	}
	if u.PhotoAssetKey != "" {
		rec.SetAsset(assetKeyPhoto, cloudstore.Asset{Key: u.PhotoAssetKey})
	}
}

func decodeUser(rec *cloudstore.Record) (*models.User, error) {
	id := rec.String("userId")
	username := rec.String("username")
	if id == "" || username == "" {
		return nil, fmt.Errorf("%w: user record %q missing required fields", common.ErrInvalidRecord, rec.ID.Name)
	}

	u := &models.User{
		ID:                     id,
		Username:               username,
		DisplayName:            rec.String("displayName"),
		Email:                  rec.String("email"),
		ReferralCode:           rec.String("referralCode"),
		AvatarEmoji:            rec.String("avatarEmoji"),
		AvatarColor:            rec.String("avatarColor"),
		ProfileImageRecordName: rec.String("profileImageRecordName"),
		RecordName:             rec.ID.Name,
	}
	if t, ok := rec.Time("createdAt"); ok {
		u.CreatedAt = t
	}
	if t, ok := rec.Time("profileImageModifiedAt"); ok {
		u.ProfileImageModifiedAt = &t
	}
	if asset, ok := rec.Assets[assetKeyPhoto]; ok {
		u.PhotoAssetKey = asset.Key
	}
	return u, nil
}

func encodeCollection(rec *cloudstore.Record, c *models.Collection) error {
	recipeIDs, err := json.Marshal(c.RecipeIDs)
	if err != nil {
		return fmt.Errorf("%w: encode recipe ids: %v", common.ErrInvalidRecord, err)
	}

	rec.Set("collectionId", c.ID)
	rec.Set("name", c.Name)
	rec.Set("description", c.Description)
	rec.Set("emoji", c.Emoji)
	rec.Set("color", c.Color)
	rec.Set("ownerId", c.OwnerID)
	rec.Set("recipeIdsData", recipeIDs)
	rec.Set("visibility", string(c.Visibility))
	rec.Set("coverMode", string(c.CoverMode))
	rec.Set("createdAt", c.CreatedAt)
	rec.Set("updatedAt", c.UpdatedAt)
	if c.CoverAssetKey != "" {
		rec.SetAsset(assetKeyCover, cloudstore.Asset{Key: c.CoverAssetKey})
	}
	return nil
}

func decodeCollection(rec *cloudstore.Record) (*models.Collection, error) {
	id := rec.String("collectionId")
	name := rec.String("name")
	if id == "" || name == "" {
		return nil, fmt.Errorf("%w: collection record %q missing required fields", common.ErrInvalidRecord, rec.ID.Name)
	}

	c := &models.Collection{
		ID:          id,
		Name:        name,
		Description: rec.String("description"),
		Emoji:       rec.String("emoji"),
		Color:       rec.String("color"),
		OwnerID:     rec.String("ownerId"),
		Visibility:  models.Visibility(rec.String("visibility")),
		CoverMode:   models.CoverMode(rec.String("coverMode")),
		RecordName:  rec.ID.Name,
	}
	if c.Visibility == "" {
		c.Visibility = models.VisibilityPrivate
	}
	if data := rec.Bytes("recipeIdsData"); data != nil {
		if err := json.Unmarshal(data, &c.RecipeIDs); err != nil {
			return nil, fmt.Errorf("%w: decode recipe ids: %v", common.ErrInvalidRecord, err)
		}
	}
	if t, ok := rec.Time("createdAt"); ok {
		c.CreatedAt = t
	}
	if t, ok := rec.Time("updatedAt"); ok {
		c.UpdatedAt = t
	}
	if asset, ok := rec.Assets[assetKeyCover]; ok {
		c.CoverAssetKey = asset.Key
	}
	return c, nil
}

func encodeConnection(rec *cloudstore.Record, c *models.Connection) {
	rec.Set("connectionId", c.ID)
	rec.Set("fromUserId", c.FromUserID)
	rec.Set("toUserId", c.ToUserID)
	rec.Set("status", string(c.Status))
	rec.Set("fromUsername", c.FromUsername)
	rec.Set("fromDisplayName", c.FromDisplayName)
	rec.Set("toUsername", c.ToUsername)
	rec.Set("toDisplayName", c.ToDisplayName)
	rec.Set("createdAt", c.CreatedAt)
	rec.Set("updatedAt", c.UpdatedAt)
}

func decodeConnection(rec *cloudstore.Record) (*models.Connection, error) {
	id := rec.String("connectionId")
	from := rec.String("fromUserId")
	to := rec.String("toUserId")
	if id == "" || from == "" || to == "" {
		return nil, fmt.Errorf("%w: connection record %q missing required fields", common.ErrInvalidRecord, rec.ID.Name)
	}

	c := &models.Connection{
		ID:              id,
		FromUserID:      from,
		ToUserID:        to,
		Status:          models.ConnectionStatus(rec.String("status")),
		FromUsername:    rec.String("fromUsername"),
		FromDisplayName: rec.String("fromDisplayName"),
		ToUsername:      rec.String("toUsername"),
		ToDisplayName:   rec.String("toDisplayName"),
		RecordName:      rec.ID.Name,
	}
	if c.Status == "" {
		c.Status = models.ConnectionPending
	}
	if t, ok := rec.Time("createdAt"); ok {
		c.CreatedAt = t
	}
	if t, ok := rec.Time("updatedAt"); ok {
		c.UpdatedAt = t
	}
	return c, nil
}

func encodeReferralSignup(rec *cloudstore.Record, r *models.ReferralSignup) {
	rec.Set("referrerId", r.ReferrerID)
	rec.Set("newUserId", r.NewUserID)
	rec.Set("createdAt", r.CreatedAt)
}

func decodeReferralSignup(rec *cloudstore.Record) (*models.ReferralSignup, error) {
	referrer := rec.String("referrerId")
	newUser := rec.String("newUserId")
	if referrer == "" || newUser == "" {
		return nil, fmt.Errorf("%w: referral record %q missing required fields", common.ErrInvalidRecord, rec.ID.Name)
	}
	r := &models.ReferralSignup{ReferrerID: referrer, NewUserID: newUser}
	if t, ok := rec.Time("createdAt"); ok {
		r.CreatedAt = t
	}
	return r, nil
}
