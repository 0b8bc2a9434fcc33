// Package history implements the in-memory conversation core: a bounded
// turn store, a branch index, and message assembly for generation requests.
//
// The package does no I/O. Callers that want durability serialize the
// entities themselves (see internal/db for the session archive).
package history

// TurnID uniquely identifies a recorded turn. IDs are issued by History in
// strictly increasing order and are never reused, so an ID either resolves
// to the exact turn it was issued for or to nothing at all.
type TurnID uint64

// BranchID identifies a conversation branch. Branch 0 is the implicit
// default branch; forked branches get strictly increasing IDs.
type BranchID uint64

// DefaultBranch is the branch every conversation starts on.
const DefaultBranch BranchID = 0

// Turn is one recorded prompt/response interaction. Immutable after creation.
type Turn struct {
	// ID is the stable identifier issued at append time
	ID TurnID `json:"id"`

	// Branch is the branch this turn was recorded under
	Branch BranchID `json:"branch"`

	// SystemPrompt is the system prompt in effect for this turn (may be empty)
	SystemPrompt string `json:"system_prompt,omitempty"`

	// UserPrompt is the user's prompt text (may be empty)
	UserPrompt string `json:"user_prompt,omitempty"`

	// Response is the assistant's response (empty while a request is in flight)
	Response string `json:"response,omitempty"`

	// CreatedAt is the Unix timestamp when the turn was recorded
	CreatedAt int64 `json:"created_at"`

	// ForkParent references the turn this branch forked from. Set only on
	// the first turn of a forked branch; the parent may belong to a
	// different branch and may since have been evicted.
	ForkParent *TurnID `json:"fork_parent,omitempty"`
}

// TurnData contains the caller-supplied fields for a new turn. The ID and
// creation timestamp are assigned by History.Append.
type TurnData struct {
	Branch       BranchID
	SystemPrompt string
	UserPrompt   string
	Response     string
	ForkParent   *TurnID
}

// BranchRecord describes a branch's identity and fork point, independent of
// its turns. Used to rebuild a History from archived state.
type BranchRecord struct {
	ID         BranchID `json:"id"`
	ForkParent *TurnID  `json:"fork_parent,omitempty"`
}

// LineageHop is one step in a branch's ancestry walk.
type LineageHop struct {
	Branch     BranchID `json:"branch"`
	ForkParent *TurnID  `json:"fork_parent,omitempty"`
}
