package protocol

const (
	// Protocol/transport validation.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrNotAuthenticated = "E_NOT_AUTHENTICATED"
	ErrRateLimit        = "E_RATE_LIMIT"

	// Rule layer.
	ErrNoResource    = "E_NO_RESOURCE"
	ErrNoShips       = "E_NO_SHIPS"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrCooldown      = "E_COOLDOWN"
	ErrShielded      = "E_SHIELDED"
	ErrDepleted      = "E_DEPLETED"
	ErrNotFound      = "E_NOT_FOUND"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:       {},
	ErrNotAuthenticated: {},
	ErrRateLimit:        {},
	ErrNoResource:       {},
	ErrNoShips:          {},
	ErrInvalidTarget:    {},
	ErrConflict:         {},
	ErrCooldown:         {},
	ErrShielded:         {},
	ErrDepleted:         {},
	ErrNotFound:         {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
