package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestState_Thresholds(t *testing.T) {
	tests := []struct {
		name         string
		remaining    int
		wantBlock    bool
		wantThrottle bool
	}{
		{name: "healthy", remaining: 500, wantBlock: false, wantThrottle: false},
		{name: "at warning threshold", remaining: RemainingWarning, wantBlock: false, wantThrottle: false},
		{name: "below warning", remaining: RemainingWarning - 1, wantBlock: false, wantThrottle: true},
		{name: "last request", remaining: 1, wantBlock: false, wantThrottle: true},
		{name: "exhausted", remaining: 0, wantBlock: true, wantThrottle: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Remaining: tt.remaining}
			if got := s.NeedsBlock(); got != tt.wantBlock {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := &State{ResetAt: time.Now().Add(-time.Second)}
	if d := s.TimeUntilReset(); d != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", d)
	}

	s.ResetAt = time.Now().Add(30 * time.Second)
	if d := s.TimeUntilReset(); d < 29*time.Second || d > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want about 30s", d)
	}
}

func TestState_IsStale(t *testing.T) {
	fresh := &State{LastUpdate: time.Now(), ResetAt: time.Now().Add(time.Minute)}
	if fresh.IsStale(time.Minute) {
		t.Error("fresh state reported stale")
	}

	old := &State{LastUpdate: time.Now().Add(-2 * time.Minute), ResetAt: time.Now().Add(time.Minute)}
	if !old.IsStale(time.Minute) {
		t.Error("old state not reported stale")
	}

	reset := &State{LastUpdate: time.Now(), ResetAt: time.Now().Add(-time.Second)}
	if !reset.IsStale(time.Hour) {
		t.Error("state past its reset not reported stale")
	}
}

func TestParseHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name          string
		status        int
		headers       map[string]string
		wantOK        bool
		wantErr       bool
		wantRemaining int
		wantResetAt   time.Time
	}{
		{
			name:          "epoch reset",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRemaining: "4999", HeaderReset: "1700000600"},
			wantOK:        true,
			wantRemaining: 4999,
			wantResetAt:   time.Unix(1_700_000_600, 0),
		},
		{
			name:          "delta reset",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRemaining: "12", HeaderReset: "30"},
			wantOK:        true,
			wantRemaining: 12,
			wantResetAt:   now.Add(30 * time.Second),
		},
		{
			name:          "missing reset assumes a minute",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRemaining: "3"},
			wantOK:        true,
			wantRemaining: 3,
			wantResetAt:   now.Add(time.Minute),
		},
		{
			name:          "retry-after on 429",
			status:        http.StatusTooManyRequests,
			headers:       map[string]string{HeaderRetryAfter: "20", HeaderRemaining: "7"},
			wantOK:        true,
			wantRemaining: 0,
			wantResetAt:   now.Add(20 * time.Second),
		},
		{
			name:          "retry-after ignored on 200",
			status:        http.StatusOK,
			headers:       map[string]string{HeaderRetryAfter: "20", HeaderRemaining: "7", HeaderReset: "5"},
			wantOK:        true,
			wantRemaining: 7,
			wantResetAt:   now.Add(5 * time.Second),
		},
		{
			name:    "no headers",
			status:  http.StatusOK,
			headers: nil,
			wantOK:  false,
		},
		{
			name:    "invalid remaining",
			status:  http.StatusOK,
			headers: map[string]string{HeaderRemaining: "lots"},
			wantErr: true,
		},
		{
			name:    "invalid reset",
			status:  http.StatusOK,
			headers: map[string]string{HeaderRemaining: "1", HeaderReset: "soon"},
			wantErr: true,
		},
		{
			name:    "invalid retry-after",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{HeaderRetryAfter: "later"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			state, ok, err := ParseHeaders("api.test", tt.status, h, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ParseHeaders() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if state.Host != "api.test" {
				t.Errorf("Host = %q", state.Host)
			}
			if state.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemaining)
			}
			if !state.ResetAt.Equal(tt.wantResetAt) {
				t.Errorf("ResetAt = %v, want %v", state.ResetAt, tt.wantResetAt)
			}
		})
	}
}
