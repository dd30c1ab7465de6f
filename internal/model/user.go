package model

// UserState tracks the verification lifecycle of an end user.
type UserState string

const (
	StateNew                 UserState = "new"
	StatePendingVerification UserState = "pending_verification"
	StateVerified            UserState = "verified"
)

// Profile is the cached Telegram identity snapshot for a user, refreshed
// opportunistically when new messages arrive.
type Profile struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	FirstSeen int64  `json:"first_message_date,omitempty"`
}

// User is one end-user identity and its relay state. ThreadID is empty until
// the first forwardable message lazily creates a staff-side topic. The three
// card message ids reference the rendered status card in its three possible
// locations (in-thread, profile digest, block digest); each is independently
// nullable.
type User struct {
	ID                  string    `json:"user_id"`
	State               UserState `json:"user_state"`
	IsBlocked           bool      `json:"is_blocked"`
	IsMuted             bool      `json:"is_muted"`
	BlockCount          int       `json:"block_count"`
	ThreadID            string    `json:"thread_id,omitempty"`
	CardMessageID       string    `json:"info_card_message_id,omitempty"`
	BlockLogMessageID   string    `json:"block_log_message_id,omitempty"`
	ProfileLogMessageID string    `json:"profile_log_message_id,omitempty"`
	Profile             *Profile  `json:"profile,omitempty"`
}

// UserPatch is a partial update for a user row. Nil fields are left untouched.
// String reference fields use a double pointer so callers can distinguish
// "don't touch" (nil) from "clear" (pointer to nil).
type UserPatch struct {
	State               *UserState
	IsBlocked           *bool
	IsMuted             *bool
	BlockCount          *int
	ThreadID            **string
	CardMessageID       **string
	BlockLogMessageID   **string
	ProfileLogMessageID **string
	Profile             *Profile
}

func ref[T any](v T) *T { return &v }

// SetState sets the verification state.
func (p *UserPatch) SetState(s UserState) *UserPatch {
	p.State = &s
	return p
}

// SetBlocked sets the block flag.
func (p *UserPatch) SetBlocked(v bool) *UserPatch {
	p.IsBlocked = &v
	return p
}

// SetMuted sets the mute flag.
func (p *UserPatch) SetMuted(v bool) *UserPatch {
	p.IsMuted = &v
	return p
}

// SetBlockCount sets the strike counter.
func (p *UserPatch) SetBlockCount(n int) *UserPatch {
	p.BlockCount = &n
	return p
}

// SetThreadID records a new thread id.
func (p *UserPatch) SetThreadID(id string) *UserPatch {
	p.ThreadID = ref(ref(id))
	return p
}

// ClearThreadID marks the thread reference for removal.
func (p *UserPatch) ClearThreadID() *UserPatch {
	var empty *string
	p.ThreadID = &empty
	return p
}

// SetCardMessageID records the in-thread status card message id.
func (p *UserPatch) SetCardMessageID(id string) *UserPatch {
	p.CardMessageID = ref(ref(id))
	return p
}

// SetBlockLogMessageID records the block-digest card message id; "" clears it.
func (p *UserPatch) SetBlockLogMessageID(id string) *UserPatch {
	if id == "" {
		var empty *string
		p.BlockLogMessageID = &empty
	} else {
		p.BlockLogMessageID = ref(ref(id))
	}
	return p
}

// SetProfileLogMessageID records the profile-digest card message id.
func (p *UserPatch) SetProfileLogMessageID(id string) *UserPatch {
	p.ProfileLogMessageID = ref(ref(id))
	return p
}

// SetProfile replaces the cached identity snapshot.
func (p *UserPatch) SetProfile(pr *Profile) *UserPatch {
	p.Profile = pr
	return p
}
