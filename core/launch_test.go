package core

import (
	"testing"

	"github.com/antic-browser/antic/database"
)

func testProfile() *ProfileConfig {
	return &ProfileConfig{
		Name:      "work",
		UserAgent: DEFAULT_USERAGENT,
		Width:     1920,
		Height:    1080,
		Timezone:  "America/New_York",
		Language:  "en-US",
		Homepage:  "https://whoer.net",
	}
}

func staticLookup(rec *database.CheckResult) CheckLookup {
	return func(raw_key string) (*database.CheckResult, bool) {
		if rec == nil {
			return nil, false
		}
		return rec, true
	}
}

func TestResolveCountryOverride(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"
	rec := &database.CheckResult{
		Status:  database.CheckStatusOk,
		Country: "RU",
	}

	lc, err := ResolveLaunchConfig(p, staticLookup(rec), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Locale != "ru-RU" {
		t.Errorf("Locale = %q, want ru-RU", lc.Locale)
	}
	if lc.TimezoneId != "Europe/Moscow" {
		t.Errorf("TimezoneId = %q, want Europe/Moscow", lc.TimezoneId)
	}
}

func TestResolveUnknownCountryKeepsProfileSettings(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"
	rec := &database.CheckResult{
		Status:  database.CheckStatusOk,
		Country: "ZZ",
	}

	lc, err := ResolveLaunchConfig(p, staticLookup(rec), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Locale != "en-US" {
		t.Errorf("Locale = %q, want en-US", lc.Locale)
	}
	if lc.TimezoneId != "America/New_York" {
		t.Errorf("TimezoneId = %q, want America/New_York", lc.TimezoneId)
	}
}

func TestResolveRecordTimezoneWinsOverCountryDefault(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"
	rec := &database.CheckResult{
		Status:   database.CheckStatusOk,
		Country:  "RU",
		Timezone: "Asia/Yekaterinburg",
	}

	lc, err := ResolveLaunchConfig(p, staticLookup(rec), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.TimezoneId != "Asia/Yekaterinburg" {
		t.Errorf("TimezoneId = %q, want Asia/Yekaterinburg", lc.TimezoneId)
	}
	if lc.Locale != "ru-RU" {
		t.Errorf("Locale = %q, want ru-RU", lc.Locale)
	}
}

func TestResolveCoordsSetGeolocation(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"
	rec := &database.CheckResult{
		Status:    database.CheckStatusOk,
		Country:   "DE",
		Latitude:  52.52,
		Longitude: 13.405,
		HasCoords: true,
	}

	lc, err := ResolveLaunchConfig(p, staticLookup(rec), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Geolocation == nil {
		t.Fatal("Geolocation is nil")
	}
	if lc.Geolocation.Latitude != 52.52 || lc.Geolocation.Longitude != 13.405 {
		t.Errorf("Geolocation = %+v", *lc.Geolocation)
	}
}

func TestResolveFailedCheckDoesNotOverride(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"
	rec := &database.CheckResult{
		Status:  database.CheckStatusError,
		Country: "ERROR",
	}

	lc, err := ResolveLaunchConfig(p, staticLookup(rec), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.Locale != "en-US" || lc.TimezoneId != "America/New_York" {
		t.Errorf("failed check changed settings: locale=%q tz=%q", lc.Locale, lc.TimezoneId)
	}
}

func TestResolveProxyRouting(t *testing.T) {
	p := testProfile()
	p.Proxy = "203.0.113.5:8080:alice:secret"

	lc, err := ResolveLaunchConfig(p, staticLookup(nil), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if lc.NeedsRelay {
		t.Error("http proxy should not need the relay")
	}
	if lc.ProxyServer != "203.0.113.5:8080" {
		t.Errorf("ProxyServer = %q", lc.ProxyServer)
	}
	if lc.ProxyUsername != "alice" || lc.ProxyPassword != "secret" {
		t.Errorf("credentials not propagated: %q/%q", lc.ProxyUsername, lc.ProxyPassword)
	}

	p.Proxy = "socks5://bob:pw@198.51.100.9:1080"
	lc, err = ResolveLaunchConfig(p, staticLookup(nil), DEFAULT_RELAY_PORT)
	if err != nil {
		t.Fatal(err)
	}
	if !lc.NeedsRelay {
		t.Error("socks5 proxy should need the relay")
	}
	if lc.ProxyServer != "socks5://127.0.0.1:1337" {
		t.Errorf("ProxyServer = %q", lc.ProxyServer)
	}
}

func TestResolveInvalidProxyFails(t *testing.T) {
	p := testProfile()
	p.Proxy = "not a proxy"
	if _, err := ResolveLaunchConfig(p, staticLookup(nil), DEFAULT_RELAY_PORT); err == nil {
		t.Error("expected error for invalid proxy string")
	}
}

func TestAcceptLanguageHeader(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"ru-RU", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"},
		{"de-DE", "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7"},
		{"en-US", "en-US,en;q=0.9"},
		{"en-GB", "en-GB,en;q=0.9,en-US;q=0.8"},
	}
	for _, tt := range tests {
		if got := acceptLanguageHeader(tt.lang); got != tt.want {
			t.Errorf("acceptLanguageHeader(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}
