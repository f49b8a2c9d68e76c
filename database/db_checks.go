package database

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/buntdb"
)

const CheckTable = "checks"

// CheckResult is the persisted outcome of one proxy verification. It is
// keyed by the raw proxy string exactly as the user supplied it, not by the
// canonical form, so cache files survive across textual variants unchanged.
// JSON field names match the legacy proxy_cache.json layout.
type CheckResult struct {
	Status    string  `json:"status"`
	ProxyStr  string  `json:"proxy_str"`
	Ip        string  `json:"ip"`
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Type      string  `json:"type"`
	Latency   float64 `json:"latency"`
	Error     string  `json:"error,omitempty"`
	CheckTime int64   `json:"check_time,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	HasCoords bool    `json:"has_coords,omitempty"`
}

const (
	CheckStatusOk        = "ok"
	CheckStatusError     = "error"
	CheckStatusUnchecked = "unchecked"
)

func (d *Database) checksInit() {
	// no secondary index; lookups are exact-key by raw proxy string
}

func (d *Database) SetCheckResult(raw_key string, r *CheckResult) error {
	if r.CheckTime == 0 {
		r.CheckTime = time.Now().UTC().Unix()
	}
	jf, err := json.Marshal(r)
	if err != nil {
		return err
	}
	err = d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(CheckTable+":"+raw_key, string(jf), nil)
		return err
	})
	if err != nil {
		return err
	}
	// write-through: make the on-disk state current even on crash
	d.db.Shrink()
	return nil
}

func (d *Database) GetCheckResult(raw_key string) (*CheckResult, error) {
	r := &CheckResult{}
	err := d.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(CheckTable + ":" + raw_key)
		if err != nil {
			return fmt.Errorf("no check result for: %s", raw_key)
		}
		return json.Unmarshal([]byte(val), r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Database) ListCheckResults() (map[string]*CheckResult, error) {
	results := make(map[string]*CheckResult)
	err := d.db.View(func(tx *buntdb.Tx) error {
		tx.AscendKeys(CheckTable+":*", func(key, val string) bool {
			r := &CheckResult{}
			if err := json.Unmarshal([]byte(val), r); err == nil {
				results[key[len(CheckTable)+1:]] = r
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Database) DeleteCheckResult(raw_key string) error {
	return d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(CheckTable + ":" + raw_key)
		return err
	})
}

// ImportLegacyCache loads a proxy_cache.json file produced by older builds
// (flat object of raw proxy string -> check result) into the database.
// Existing entries are overwritten.
func (d *Database) ImportLegacyCache(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var cache map[string]*CheckResult
	if err := json.Unmarshal(data, &cache); err != nil {
		return 0, fmt.Errorf("cache file corrupted: %v", err)
	}
	n := 0
	for raw, r := range cache {
		if err := d.SetCheckResult(raw, r); err == nil {
			n++
		}
	}
	return n, nil
}

// ImportLegacyProxies loads a proxies.json file (flat array of canonical
// proxy strings). Duplicates are skipped.
func (d *Database) ImportLegacyProxies(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var proxies []string
	if err := json.Unmarshal(data, &proxies); err != nil {
		return 0, fmt.Errorf("proxy file corrupted: %v", err)
	}
	n := 0
	for _, p := range proxies {
		if _, err := d.AddProxy(p); err == nil {
			n++
		}
	}
	return n, nil
}
