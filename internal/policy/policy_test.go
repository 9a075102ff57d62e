// ABOUTME: Tests for origin extraction, level resolution and call tracking
// ABOUTME: Covers frame delegation and the real-location predicate

package policy

import (
	"sync"
	"testing"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
)

type recordingNotifier struct {
	mu     sync.Mutex
	scopes []string
}

func (r *recordingNotifier) Refresh(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

func settingsWith(defaultLevel string, domains map[string]string) *models.Settings {
	s := models.DefaultSettings()
	s.DefaultLevel = defaultLevel
	for k, v := range domains {
		s.DomainLevel[k] = v
	}
	return s
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https url", "https://Example.COM/path?q=1", "example.com"},
		{"with port", "http://localhost:8080/", "localhost:8080"},
		{"bare host", "maps.example.org", "maps.example.org"},
		{"trailing dot", "https://example.com./", "example.com"},
		{"unicode host", "https://bücher.example/", "xn--bcher-kva.example"},
		{"ipv4 with port", "http://127.0.0.1:8080/", "127.0.0.1:8080"},
		{"ipv6 with port", "http://[::1]:8080/", "[::1]:8080"},
		{"ipv6 without port", "http://[2001:DB8::1]/", "2001:db8::1"},
		{"empty", "", ""},
		{"garbage", "://", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDomain(tt.in); got != tt.want {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveLevel(t *testing.T) {
	s := settingsWith("medium", map[string]string{"maps.example.com": "real"})

	if got := ResolveLevel(s, "maps.example.com"); got != "real" {
		t.Errorf("expected domain override, got %s", got)
	}
	if got := ResolveLevel(s, "other.example.com"); got != "medium" {
		t.Errorf("expected default level, got %s", got)
	}
}

func TestIsRealLocationPermitted(t *testing.T) {
	tests := []struct {
		name    string
		paused  bool
		level   string
		inFrame bool
		want    bool
	}{
		{"real top level", false, "real", false, true},
		{"real in frame", false, "real", true, false},
		{"paused top level", true, "high", false, true},
		{"paused in frame", true, "high", true, false},
		{"noisy", false, "medium", false, false},
		{"fixed", false, "fixed", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settingsWith(tt.level, nil)
			s.Paused = tt.paused
			if got := IsRealLocationPermitted(s, "site.example", tt.inFrame); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_Level(t *testing.T) {
	s := settingsWith("low", map[string]string{"a.example": "high"})
	cat, err := level.ValidateSettings(s)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	r := NewResolver(nil)
	l, err := r.Level(s, cat, "a.example")
	if err != nil {
		t.Fatalf("Level: %v", err)
	}
	if l.Name != "high" || l.Radius != 2000 {
		t.Errorf("unexpected level %+v", l)
	}

	s.DefaultLevel = "bogus"
	if _, err := r.Level(s, cat, "b.example"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestResolver_WatchAllowedCountsOnlyFollowUps(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	r := NewResolver(tr)
	s := settingsWith("real", nil)
	call := CallContext{Tab: "tab-1", URL: "https://maps.example.com/", TopURL: "https://maps.example.com/"}

	if !r.WatchAllowed(s, call, true) {
		t.Fatal("expected allowed")
	}
	if n.count() != 0 {
		t.Error("first call should not signal")
	}

	if !r.WatchAllowed(s, call, false) {
		t.Fatal("expected allowed")
	}
	st := tr.State("tab-1")
	if st.APICalls != 1 || st.CallOrigin != "maps.example.com" {
		t.Errorf("unexpected tab state %+v", st)
	}
	if n.count() != 1 {
		t.Errorf("expected one refresh, got %d", n.count())
	}
}

func TestResolver_WatchAllowedDeniedDoesNotCount(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)
	r := NewResolver(tr)
	s := settingsWith("medium", nil)

	call := CallContext{Tab: "t", URL: "https://site.example/", TopURL: "https://site.example/"}
	if r.WatchAllowed(s, call, false) {
		t.Error("expected denied for noisy level")
	}

	s.DefaultLevel = "real"
	call.InFrame = true
	call.TopURL = "https://top.example/"
	if r.WatchAllowed(s, call, false) {
		t.Error("expected denied inside a frame")
	}
	if tr.State("t").APICalls != 0 || n.count() != 0 {
		t.Error("denied calls must not be counted")
	}
}

func TestFrameDelegation(t *testing.T) {
	call := CallContext{URL: "https://widget.example/embed", TopURL: "https://news.example/", InFrame: true}

	if got := (FrameDelegation{}).CurrentOrigin(call); got != "news.example" {
		t.Errorf("delegated frame origin = %q", got)
	}
	if got := (FrameDelegation{OwnDomain: true}).CurrentOrigin(call); got != "widget.example" {
		t.Errorf("own-domain frame origin = %q", got)
	}

	top := CallContext{URL: "https://news.example/a", TopURL: "https://news.example/a"}
	if got := (FrameDelegation{}).CurrentOrigin(top); got != "news.example" {
		t.Errorf("top-level origin = %q", got)
	}
}

func TestTracker_ScopesByTab(t *testing.T) {
	tr := NewTracker(nil)

	tr.Record(CallContext{URL: "https://a.example/", TopURL: "https://a.example/"}, "a.example")
	tr.Record(CallContext{URL: "https://w.example/", TopURL: "https://a.example/", InFrame: true}, "a.example")
	tr.Record(CallContext{Tab: "7", URL: "https://b.example/"}, "b.example")

	if got := tr.State("a.example").APICalls; got != 2 {
		t.Errorf("a.example calls = %d, want 2", got)
	}
	if got := tr.State("7"); got.APICalls != 1 || got.CallOrigin != "b.example" {
		t.Errorf("tab 7 state = %+v", got)
	}
	if got := tr.State("missing"); got.APICalls != 0 {
		t.Errorf("missing tab state = %+v", got)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	n := &recordingNotifier{}
	tr := NewTracker(n)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(CallContext{Tab: "t"}, "x.example")
		}()
	}
	wg.Wait()

	if got := tr.State("t").APICalls; got != 50 {
		t.Errorf("calls = %d, want 50", got)
	}
	if n.count() != 50 {
		t.Errorf("refreshes = %d, want 50", n.count())
	}
}
