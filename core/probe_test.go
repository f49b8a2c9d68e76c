package core

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antic-browser/antic/database"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// fakeProxy pretends to be a forward HTTP proxy: it answers every
// absolute-form request itself with the given body.
func fakeProxy(t *testing.T, hits *int32, body string) (*httptest.Server, string) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, ts.Listener.Addr().String()
}

func TestVerifyShortCircuitsOnFirstSuccess(t *testing.T) {
	var hits int32
	_, addr := fakeProxy(t, &hits, `{"status":"success","query":"203.0.113.7","countryCode":"DE","city":"Berlin"}`)

	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)
	checker.SetRetryPolicy(RetryPolicy{
		Attempts: 3,
		Backoff:  0,
		Timeout:  2 * time.Second,
		Services: []CheckService{
			{URL: "http://geo.test/json", IPField: "query", JSON: true, Geo: true},
			{URL: "http://echo-one.test/json", IPField: "ip", JSON: true},
			{URL: "http://echo-two.test/ip"},
		},
	})

	r := checker.Verify(addr)
	if r.Status != database.CheckStatusOk {
		t.Fatalf("Status = %q, want ok (error: %s)", r.Status, r.Error)
	}
	if r.Ip != "203.0.113.7" {
		t.Errorf("Ip = %q", r.Ip)
	}
	if r.Country != "DE" || r.City != "Berlin" {
		t.Errorf("geo = %s/%s, want DE/Berlin", r.Country, r.City)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("proxy saw %d requests, want 1 (no short-circuit)", n)
	}
}

func TestVerifyFallsThroughToNextService(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "203.0.113.7\n")
	}))
	defer ts.Close()

	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)
	checker.SetRetryPolicy(RetryPolicy{
		Attempts: 1,
		Backoff:  0,
		Timeout:  2 * time.Second,
		Services: []CheckService{
			{URL: "http://geo.test/json", IPField: "query", JSON: true, Geo: true},
			{URL: "http://echo.test/ip"},
		},
	})

	r := checker.Verify(ts.Listener.Addr().String())
	if r.Status != database.CheckStatusOk {
		t.Fatalf("Status = %q, want ok", r.Status)
	}
	if r.Ip != "203.0.113.7" {
		t.Errorf("Ip = %q", r.Ip)
	}
	// plain-text service carries no geo data
	if r.Country != "Unknown" || r.City != "Unknown" {
		t.Errorf("geo = %s/%s, want Unknown/Unknown", r.Country, r.City)
	}
}

func TestVerifyUnreachableProxyReturnsBoundedError(t *testing.T) {
	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)
	checker.SetRetryPolicy(RetryPolicy{
		Attempts: 2,
		Backoff:  0,
		Timeout:  500 * time.Millisecond,
		Services: []CheckService{
			{URL: "http://geo.test/json", IPField: "query", JSON: true, Geo: true},
		},
	})

	raw := "127.0.0.1:1"
	start := time.Now()
	r := checker.Verify(raw)
	elapsed := time.Since(start)

	if r.Status != database.CheckStatusError {
		t.Fatalf("Status = %q, want error", r.Status)
	}
	if r.City != "Connection Failed" {
		t.Errorf("City = %q, want Connection Failed", r.City)
	}
	// 2 attempts x 1 service x 500ms timeout, zero backoff
	if elapsed > 5*time.Second {
		t.Errorf("Verify took %v, retry budget not bounded", elapsed)
	}

	cached, err := db.GetCheckResult(raw)
	if err != nil {
		t.Fatalf("failure record not cached: %v", err)
	}
	if cached.Status != database.CheckStatusError {
		t.Errorf("cached Status = %q, want error", cached.Status)
	}
}

func TestVerifyInvalidFormatIsCachedUnderRawKey(t *testing.T) {
	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)

	raw := "certainly not a proxy"
	r := checker.Verify(raw)
	if r.Status != database.CheckStatusError {
		t.Fatalf("Status = %q, want error", r.Status)
	}
	if r.Country != "ERROR" || r.City != "Invalid Format" {
		t.Errorf("record = %s/%s, want ERROR/Invalid Format", r.Country, r.City)
	}

	cached, err := db.GetCheckResult(raw)
	if err != nil {
		t.Fatalf("record not cached under raw input: %v", err)
	}
	if cached.City != "Invalid Format" {
		t.Errorf("cached City = %q", cached.City)
	}
}

func TestVerifyCachesUnderRawNotCanonicalKey(t *testing.T) {
	var hits int32
	_, addr := fakeProxy(t, &hits, `{"status":"success","query":"203.0.113.7","countryCode":"DE","city":"Berlin"}`)

	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)
	checker.SetRetryPolicy(RetryPolicy{
		Attempts: 1,
		Backoff:  0,
		Timeout:  2 * time.Second,
		Services: []CheckService{
			{URL: "http://geo.test/json", IPField: "query", JSON: true, Geo: true},
		},
	})

	r := checker.Verify(addr)
	if r.Status != database.CheckStatusOk {
		t.Fatalf("Status = %q, want ok", r.Status)
	}

	if _, err := db.GetCheckResult(addr); err != nil {
		t.Errorf("no cache entry under raw key %q: %v", addr, err)
	}
	// the record itself carries the canonical string
	pd, _ := ParseProxy(addr)
	if r.ProxyStr != pd.String() {
		t.Errorf("ProxyStr = %q, want canonical %q", r.ProxyStr, pd.String())
	}
}

func TestVerifyRejectsImplausibleIP(t *testing.T) {
	var hits int32
	_, addr := fakeProxy(t, &hits, `{"status":"success","query":"abc","countryCode":"DE","city":"Berlin"}`)

	db := newTestDB(t)
	checker := NewProxyChecker(db, nil)
	checker.SetRetryPolicy(RetryPolicy{
		Attempts: 1,
		Backoff:  0,
		Timeout:  2 * time.Second,
		Services: []CheckService{
			{URL: "http://geo.test/json", IPField: "query", JSON: true, Geo: true},
		},
	})

	r := checker.Verify(addr)
	if r.Status != database.CheckStatusError {
		t.Errorf("Status = %q, want error for 3-char IP", r.Status)
	}
}
