package httpx

import (
    "net/http"
    "testing"
    "time"
)

func TestSetUA(t *testing.T) {
    req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
    if hv := req.Header.Get("User-Agent"); hv != "" {
        t.Fatalf("precondition: UA not empty: %q", hv)
    }
    SetUA(req)
    if hv := req.Header.Get("User-Agent"); hv != ChromeUA {
        t.Fatalf("SetUA: want %q, got %q", ChromeUA, hv)
    }
    // idempotent
    SetUA(req)
    if hv := req.Header.Get("User-Agent"); hv != ChromeUA {
        t.Fatalf("SetUA idempotent: want %q, got %q", ChromeUA, hv)
    }
}

func TestNewTimeoutClient(t *testing.T) {
    d := NewTimeoutClient(5 * time.Second)
    c, ok := d.(*http.Client)
    if !ok {
        t.Fatalf("NewTimeoutClient did not return an *http.Client: %T", d)
    }
    if c.Timeout != 5*time.Second {
        t.Fatalf("Timeout = %v, want 5s", c.Timeout)
    }
}

