package auth

// Status is the coarse authentication phase the UI keys off.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSignIn  Status = "signIn"
	StatusSignOut Status = "signOut"
)

// State is the persisted auth slice. The token is opaque to everything but
// the validator; the orchestrator only reads Status.
type State struct {
	Status Status `json:"status"`
	Token  string `json:"token,omitempty"`
}

// SignedIn reports whether a usable identity is present.
func (s State) SignedIn() bool {
	return s.Status == StatusSignIn && s.Token != ""
}
