package core

import (
	"fmt"
	"strings"

	"github.com/antic-browser/antic/database"
)

// Geolocation is the coordinate pair reported to the page when the proxy's
// exit IP could be located.
type Geolocation struct {
	Latitude  float64
	Longitude float64
}

// LaunchConfig is the final set of browser-launch parameters for one
// session. Computed fresh per launch, never persisted.
type LaunchConfig struct {
	ProfileName    string
	UserAgent      string
	Width          int
	Height         int
	Locale         string
	TimezoneId     string
	Geolocation    *Geolocation
	AcceptLanguage string

	// Proxy is the upstream descriptor; ProxyServer is what the browser
	// engine's native proxy option receives. Non-HTTP schemes point it at
	// the local relay instead.
	Proxy         *ProxyDescriptor
	ProxyServer   string
	ProxyUsername string
	ProxyPassword string
	NeedsRelay    bool
	RelayPort     int

	WebGL    bool
	Vendor   string
	CPU      int
	RAM      int
	Touch    bool
	Cookies  string
	Homepage string
}

// CheckLookup reads a verification record from the cache by its raw proxy
// string key. Injected so the resolver stays a pure transform.
type CheckLookup func(raw_key string) (*database.CheckResult, bool)

// ResolveLaunchConfig turns a stored profile plus the proxy's cached
// verification record into launch parameters. Override precedence: profile
// values verbatim, then country-table defaults when the proxy resolved to a
// recognized country, then the record's own finer-grained timezone.
func ResolveLaunchConfig(p *ProfileConfig, lookup CheckLookup, relay_port int) (*LaunchConfig, error) {
	lc := &LaunchConfig{
		ProfileName: p.Name,
		UserAgent:   p.UserAgent,
		Width:       p.Width,
		Height:      p.Height,
		Locale:      p.Language,
		TimezoneId:  p.Timezone,
		WebGL:       p.WebGL,
		Vendor:      p.Vendor,
		CPU:         p.CPU,
		RAM:         p.RAM,
		Touch:       p.Touch,
		Cookies:     p.Cookies,
		Homepage:    p.Homepage,
		RelayPort:   relay_port,
	}

	if p.Proxy != "" {
		pd, err := ParseProxy(p.Proxy)
		if err != nil {
			return nil, err
		}
		lc.Proxy = pd

		if pd.IsDirect() {
			lc.ProxyServer = fmt.Sprintf("%s:%d", pd.Host, pd.Port)
			lc.ProxyUsername = pd.Username
			lc.ProxyPassword = pd.Password
		} else {
			lc.NeedsRelay = true
			lc.ProxyServer = fmt.Sprintf("socks5://127.0.0.1:%d", relay_port)
		}

		if lookup != nil {
			if rec, ok := lookup(p.Proxy); ok && rec.Status == database.CheckStatusOk {
				applyGeoOverrides(lc, rec)
			}
		}
	}

	lc.AcceptLanguage = acceptLanguageHeader(lc.Locale)
	return lc, nil
}

func applyGeoOverrides(lc *LaunchConfig, rec *database.CheckResult) {
	if settings, ok := COUNTRY_SETTINGS[rec.Country]; ok {
		lc.Locale = settings.Lang
		lc.TimezoneId = settings.Timezone
	}
	// a timezone resolved from the exit IP's coordinates is more specific
	// than the country default and wins over it
	if rec.Timezone != "" {
		lc.TimezoneId = rec.Timezone
	}
	if rec.HasCoords {
		lc.Geolocation = &Geolocation{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		}
	}
}

// acceptLanguageHeader synthesizes the Accept-Language value for the
// session locale, appending English fallbacks unless the locale already is
// an English one.
func acceptLanguageHeader(lang string) string {
	primary := lang
	if idx := strings.Index(lang, "-"); idx != -1 {
		primary = lang[:idx]
	}
	parts := []string{lang, primary + ";q=0.9"}
	if lang != "en-US" {
		parts = append(parts, "en-US;q=0.8")
	}
	if primary != "en" {
		parts = append(parts, "en;q=0.7")
	}
	return strings.Join(parts, ",")
}
