package session

// EventKind identifies a session lifecycle notification from the auth service.
type EventKind string

const (
	// SignedIn carries a fresh token after an interactive sign-in.
	SignedIn EventKind = "signed-in"
	// SignedOut means the auth service ended the session.
	SignedOut EventKind = "signed-out"
	// TokenRefreshed carries a replacement token for the current session.
	TokenRefreshed EventKind = "token-refreshed"
)

// Event is a session lifecycle notification. Token is set for SignedIn and
// TokenRefreshed, empty for SignedOut.
type Event struct {
	Kind  EventKind
	Token string
}
