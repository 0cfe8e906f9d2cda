package engine

// User identifies who performed an operation, for audit attribution.
type User struct {
	ID   string
	Name string
}

// Identity is the external user/session provider. The engine never
// authenticates; it only records who the collaborator says is acting.
type Identity interface {
	CurrentUser() User
}

// StaticIdentity always reports the same user. Useful for single-terminal
// deployments and tests.
type StaticIdentity struct {
	User User
}

// CurrentUser returns the fixed user.
func (s StaticIdentity) CurrentUser() User { return s.User }

// systemIdentity is the fallback when no identity provider is injected.
var systemIdentity = StaticIdentity{User: User{ID: "system", Name: "System"}}
