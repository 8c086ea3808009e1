package thread

// Session carries the conversation state of one caller across requests.
// It is passed explicitly through the pipeline so nothing depends on
// ambient globals.
type Session struct {
	OwnerID  string
	ThreadID string
	// Requests counts how many requests this session has served, used to
	// decide when to refresh the profile context in a reused thread.
	Requests int
}

// NeedsProfileRefresh reports whether the next request should re-inject the
// student profile into the thread.
func (s *Session) NeedsProfileRefresh(every int) bool {
	if every <= 0 || s.Requests == 0 {
		return false
	}
	return s.Requests%every == 0
}
