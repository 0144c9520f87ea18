package calcerrors

import "errors"

// Calculator sentinel errors. Shared by session, storage, api and ws so callers
// can branch with errors.Is without importing each other.
var (
	ErrInvalidTransition = errors.New("action not allowed for this card")
	ErrCardNotFound      = errors.New("card not found")
	ErrPlayerNotFound    = errors.New("player not in session")
	ErrTemplateNotFound  = errors.New("card template not found")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrInvalidTier       = errors.New("chaos tier out of range")
	ErrInvalidTeam       = errors.New("invalid team selection")
	ErrIncompleteData    = errors.New("reference data incomplete")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Declined reports whether err is a recoverable rejection of a player action
// (the state was left untouched and the user only needs a notice).
func Declined(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrNothingToUndo) ||
		errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrInvalidTeam)
}
