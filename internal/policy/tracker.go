// ABOUTME: Per-tab API call accounting with UI refresh notifications
// ABOUTME: Counts position calls and remembers the origin each call is shown under

package policy

import (
	"sync"
)

// Notifier receives fire-and-forget refresh signals for a tab.
type Notifier interface {
	Refresh(scope string)
}

// TabState is the call accounting for one top-level context.
type TabState struct {
	CallOrigin string `json:"call_origin"`
	APICalls   int    `json:"api_calls"`
}

// Tracker counts API calls per tab. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	tabs     map[string]*TabState
	notifier Notifier
}

// NewTracker creates a tracker. A nil notifier drops refresh signals.
func NewTracker(n Notifier) *Tracker {
	return &Tracker{
		tabs:     make(map[string]*TabState),
		notifier: n,
	}
}

// Record counts one call for the call's tab, remembers the origin it was
// attributed to, and signals a refresh.
func (t *Tracker) Record(call CallContext, origin string) {
	scope := tabKey(call)

	t.mu.Lock()
	st, ok := t.tabs[scope]
	if !ok {
		st = &TabState{}
		t.tabs[scope] = st
	}
	st.APICalls++
	st.CallOrigin = origin
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.Refresh(scope)
	}
}

// State returns a copy of the accounting for tab.
func (t *Tracker) State(tab string) TabState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.tabs[tab]; ok {
		return *st
	}
	return TabState{}
}

func tabKey(call CallContext) string {
	if call.Tab != "" {
		return call.Tab
	}
	if call.TopURL != "" {
		return ExtractDomain(call.TopURL)
	}
	return ExtractDomain(call.URL)
}
