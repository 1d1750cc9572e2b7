package auth

// Identity is the signed-in user as seen by domain services.
type Identity interface {
	UserID() string
}

// Static is a fixed identity, used by the CLI and tests.
type Static string

func (s Static) UserID() string { return string(s) }
