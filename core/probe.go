package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/antic-browser/antic/database"
	"github.com/antic-browser/antic/log"
)

// CheckService is one public IP-echo endpoint used to verify that a proxy
// routes traffic. Services with Geo=true return the geolocation in the same
// response, saving a round trip.
type CheckService struct {
	URL     string
	IPField string
	JSON    bool
	Geo     bool
}

// Ordered by preference: combined IP+geo services first, plain echo
// services as fallback. Any of these can be down or rate-limited for a
// given exit IP, hence the fan-out.
var defaultCheckServices = []CheckService{
	{URL: "http://ip-api.com/json/", IPField: "query", JSON: true, Geo: true},
	{URL: "https://api.ipify.org?format=json", IPField: "ip", JSON: true},
	{URL: "https://ipapi.co/json/", IPField: "ip", JSON: true, Geo: true},
	{URL: "http://api.ipify.org?format=json", IPField: "ip", JSON: true},
	{URL: "https://ifconfig.me/ip"},
	{URL: "http://checkip.amazonaws.com"},
}

// RetryPolicy is the pure retry schedule for proxy verification,
// independent of how the host application schedules the work.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
	Services []CheckService
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  2 * time.Second,
		Timeout:  10 * time.Second,
		Services: defaultCheckServices,
	}
}

const checkUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ProxyChecker verifies proxy reachability and resolves the externally
// visible IP and its geography. Verify never returns an error; every
// failure mode is encoded in the returned record, which is also written
// through to the verification cache under the raw input string.
type ProxyChecker struct {
	db     *database.Database
	geo    *GeoResolver
	policy RetryPolicy
}

func NewProxyChecker(db *database.Database, geo *GeoResolver) *ProxyChecker {
	return &ProxyChecker{
		db:     db,
		geo:    geo,
		policy: DefaultRetryPolicy(),
	}
}

func (c *ProxyChecker) SetRetryPolicy(policy RetryPolicy) {
	c.policy = policy
}

// Verify probes the proxy and returns its verification record. Blocking;
// run it on its own goroutine when checking many proxies concurrently.
func (c *ProxyChecker) Verify(raw string) *database.CheckResult {
	log.Info("checking proxy: %s", maskRaw(raw))

	pd, err := ParseProxy(raw)
	if err != nil {
		log.Error("proxy parse failed: %v", err)
		r := &database.CheckResult{
			Status:   database.CheckStatusError,
			ProxyStr: raw,
			Ip:       "N/A",
			Country:  "ERROR",
			City:     "Invalid Format",
			Type:     "unknown",
			Error:    err.Error(),
		}
		c.store(raw, r)
		return r
	}

	client, err := c.newProxyClient(pd)
	if err != nil {
		r := &database.CheckResult{
			Status:   database.CheckStatusError,
			ProxyStr: pd.String(),
			Ip:       "N/A",
			Country:  "ERROR",
			City:     "Connection Failed",
			Type:     strings.ToUpper(pd.Scheme),
			Error:    err.Error(),
		}
		c.store(raw, r)
		return r
	}

	for attempt := 0; attempt < c.policy.Attempts; attempt++ {
		log.Debug("proxy check attempt %d/%d for %s", attempt+1, c.policy.Attempts, pd.DisplayString())

		for _, svc := range c.policy.Services {
			r, ok := c.queryService(client, pd, svc)
			if ok {
				c.store(raw, r)
				log.Success("proxy works: %s | %s | %s | %.0fms", r.Country, r.City, r.Ip, r.Latency*1000)
				return r
			}
		}

		if attempt < c.policy.Attempts-1 {
			time.Sleep(c.policy.Backoff)
		}
	}

	log.Error("proxy is not working: %s", pd.DisplayString())
	r := &database.CheckResult{
		Status:   database.CheckStatusError,
		ProxyStr: pd.String(),
		Ip:       "N/A",
		Country:  "ERROR",
		City:     "Connection Failed",
		Type:     strings.ToUpper(pd.Scheme),
		Error:    "connection failed",
	}
	c.store(raw, r)
	return r
}

// queryService issues one GET through the proxy and, on success, builds the
// full verification record for it. Failures of any kind just move the
// caller on to the next service.
func (c *ProxyChecker) queryService(client *resty.Client, pd *ProxyDescriptor, svc CheckService) (*database.CheckResult, bool) {
	start := time.Now()
	resp, err := client.R().Get(svc.URL)
	if err != nil {
		log.Debug("service %s failed: %v", svc.URL, err)
		return nil, false
	}
	latency := time.Since(start)

	if resp.StatusCode() != http.StatusOK {
		log.Debug("service %s returned status %d", svc.URL, resp.StatusCode())
		return nil, false
	}

	var ip string
	var payload struct {
		Status        string `json:"status"`
		Query         string `json:"query"`
		Ip            string `json:"ip"`
		CountryCode   string `json:"countryCode"`
		CountryCodeCo string `json:"country_code"`
		City          string `json:"city"`
	}

	if svc.JSON {
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			return nil, false
		}
		switch svc.IPField {
		case "query":
			ip = payload.Query
		default:
			ip = payload.Ip
		}
	} else {
		ip = strings.TrimSpace(string(resp.Body()))
	}

	// coarse IPv4/IPv6 sanity bound
	if len(ip) < 7 || len(ip) > 45 {
		return nil, false
	}

	country := "Unknown"
	city := "Unknown"
	if svc.Geo {
		code := payload.CountryCode
		if code == "" {
			code = payload.CountryCodeCo
		}
		if code != "" && payload.Status != "fail" {
			country = code
		}
		if payload.City != "" {
			city = payload.City
		}
	}

	r := &database.CheckResult{
		Status:   database.CheckStatusOk,
		ProxyStr: pd.String(),
		Ip:       ip,
		Country:  country,
		City:     city,
		Type:     strings.ToUpper(pd.Scheme),
		Latency:  latency.Seconds(),
	}

	// remote geo takes priority; the local database only fills the gaps
	// and contributes coordinates and timezone for launch enrichment
	if c.geo != nil {
		geo := c.geo.Resolve(ip)
		if r.Country == "Unknown" && geo.CountryCode != GEO_UNKNOWN {
			r.Country = geo.CountryCode
		}
		if r.City == "Unknown" && geo.City != GEO_UNKNOWN {
			r.City = geo.City
		}
		if geo.HasCoords {
			r.Latitude = geo.Latitude
			r.Longitude = geo.Longitude
			r.HasCoords = true
		}
		if geo.Timezone != "" {
			r.Timezone = geo.Timezone
		}
	}

	return r, true
}

// newProxyClient builds an HTTP client routed through the proxy. SOCKS
// schemes use their resolve-via-proxy variants so DNS queries go through
// the proxy as well.
func (c *ProxyChecker) newProxyClient(pd *ProxyDescriptor) (*resty.Client, error) {
	tr := &http.Transport{
		DisableKeepAlives: true,
	}

	switch pd.RoutingScheme() {
	case "http", "https":
		u := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", pd.Host, pd.Port),
		}
		if pd.Username != "" {
			u.User = url.UserPassword(pd.Username, pd.Password)
		}
		tr.Proxy = http.ProxyURL(u)
	case "socks5h":
		var auth *proxy.Auth
		if pd.Username != "" {
			auth = &proxy.Auth{User: pd.Username, Password: pd.Password}
		}
		d, err := proxy.SOCKS5("tcp", fmt.Sprintf("%s:%d", pd.Host, pd.Port), auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %v", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support context")
		}
		tr.DialContext = cd.DialContext
	case "socks4a":
		// socks4a mode so hostname resolution happens on the proxy side
		uri := fmt.Sprintf("socks4a://%s:%d?timeout=%ds", pd.Host, pd.Port, int(c.policy.Timeout.Seconds()))
		tr.Dial = socks.Dial(uri)
	}

	client := resty.NewWithClient(&http.Client{
		Transport: tr,
		Timeout:   c.policy.Timeout,
	})
	client.SetHeaders(map[string]string{
		"User-Agent":      checkUserAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
	})
	return client, nil
}

func (c *ProxyChecker) store(raw_key string, r *database.CheckResult) {
	if c.db == nil {
		return
	}
	if err := c.db.SetCheckResult(raw_key, r); err != nil {
		log.Error("failed to save check result: %v", err)
	}
}

func maskRaw(raw string) string {
	if pd, err := ParseProxy(raw); err == nil {
		return pd.DisplayString()
	}
	return raw
}
