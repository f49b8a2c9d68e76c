package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antic-browser/antic/log"
)

// Cookie is the persisted cookie record. SameSite is never written to disk;
// it is forced to "Strict" on load before injection and stripped again on
// save. The asymmetry is intentional, legacy cookie files carry no sameSite
// attribute and the browser engine rejects some imported values.
type Cookie struct {
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Expires  float64 `json:"expires,omitempty"`
	HttpOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieStore reads and writes per-profile cookie files under a single
// directory. One file per profile, named after the profile.
type CookieStore struct {
	dir string
}

func NewCookieStore(dir string) *CookieStore {
	return &CookieStore{dir: dir}
}

func (s *CookieStore) profilePath(profile string) string {
	return filepath.Join(s.dir, profile)
}

// Load returns the cookies to inject for a profile. A previously saved
// profile cookie file takes precedence over the externally supplied source
// path; the source is only consulted on first launch. Every returned cookie
// has SameSite forced to "Strict".
func (s *CookieStore) Load(profile string, source string) []Cookie {
	var cookies []Cookie

	profile_file := s.profilePath(profile)
	if _, err := os.Stat(profile_file); err == nil {
		data, err := os.ReadFile(profile_file)
		if err != nil {
			log.Error("failed to read saved cookies: %v", err)
			return nil
		}
		if err := json.Unmarshal(data, &cookies); err != nil {
			log.Error("failed to parse saved cookies: %v", err)
			return nil
		}
	} else if source != "" {
		data, err := os.ReadFile(source)
		if err != nil {
			log.Error("failed to read cookies from '%s': %v", source, err)
			return nil
		}
		if err := json.Unmarshal(data, &cookies); err != nil {
			cookies = ParseNetscapeCookies(string(data))
		}
	}

	for i := range cookies {
		cookies[i].SameSite = "Strict"
	}
	return cookies
}

// Save writes the profile's cookies, dropping any sameSite attribute the
// browser reported.
func (s *CookieStore) Save(profile string, cookies []Cookie) error {
	for i := range cookies {
		cookies[i].SameSite = ""
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cookies, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.profilePath(profile), data, 0600)
}

// ParseNetscapeCookies parses the tab-separated Netscape cookies.txt
// export format. Malformed lines are skipped.
func ParseNetscapeCookies(data string) []Cookie {
	var cookies []Cookie
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 7 {
			continue
		}
		expires, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			continue
		}
		cookies = append(cookies, Cookie{
			Domain:   parts[0],
			HttpOnly: strings.EqualFold(parts[1], "TRUE"),
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			Expires:  expires,
			Name:     parts[5],
			Value:    parts[6],
		})
	}
	return cookies
}
