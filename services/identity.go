package services

// Identity is the authenticated caller as resolved from the session.
// A nil *Identity means the request is unauthenticated.
type Identity struct {
	UserID   uint
	Username string
	Name     string
	Image    string
}
