package common

import "errors"

// UserMessage maps an error to a stable human-readable description plus an
// optional recovery suggestion suitable for direct display. Unknown errors
// get a generic description and no suggestion.
func UserMessage(err error) (description string, recovery string) {
	var unavailable *AccountUnavailableError
	if errors.As(err, &unavailable) {
		switch unavailable.Status {
		case StatusNoAccount:
			return "No cloud account is signed in.", "Sign in to your account in Settings to sync your recipes."
		case StatusRestricted:
			return "Cloud access is restricted on this device.", "Check parental controls or device management settings."
		case StatusTemporarilyUnavailable:
			return "The cloud account is temporarily unavailable.", "Try again in a few minutes."
		default:
			return "Could not determine cloud account status.", "Check your connection and try again."
		}
	}

	switch {
	case errors.Is(err, ErrNotEnabled):
		return "Cloud sync is not enabled.", ""
	case errors.Is(err, ErrNotAuthenticated):
		return "You are not signed in.", "Sign in and try again."
	case errors.Is(err, ErrPermissionDenied):
		return "You don't have permission to do that.", ""
	case errors.Is(err, ErrQuotaExceeded):
		return "Your cloud storage is full.", "Free up storage space or upgrade your plan, then try again."
	case errors.Is(err, ErrNetwork):
		return "A network error occurred.", "Check your connection and try again."
	case errors.Is(err, ErrSyncConflict):
		return "This item was changed on another device.", "Refresh and try again."
	case errors.Is(err, ErrAssetTooLarge):
		return "This image is too large to upload.", "Choose a smaller image."
	case errors.Is(err, ErrCompressionFailed):
		return "This image could not be processed.", "Choose a different image."
	case errors.Is(err, ErrAssetNotFound):
		return "The image could not be found.", ""
	case errors.Is(err, ErrUserNotFound):
		return "No matching user was found.", ""
	case errors.Is(err, ErrInvalidRecord):
		return "A synced item was malformed.", ""
	case errors.Is(err, ErrNotFound):
		return "The item could not be found.", ""
	default:
		return "Something went wrong.", ""
	}
}
