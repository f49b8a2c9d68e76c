package core

import (
	"net"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/geoip2-golang"
	"github.com/ringsaturn/tzf"

	"github.com/antic-browser/antic/log"
)

// GEO_UNKNOWN marks a field the resolver could not determine. Geolocation
// is best-effort enrichment; callers never see an error from this path.
const GEO_UNKNOWN = "UNK"

const geoCacheSize = 256

// GeoResult is the resolved geography for a single IP. Latitude and
// longitude are either both valid (HasCoords) or both absent.
type GeoResult struct {
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
	HasCoords   bool
	Timezone    string
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

type tzFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// GeoResolver answers IP-to-geography lookups from the local MaxMind
// databases, memoizing per-IP results in a fixed-size LRU. Lookup failures
// degrade to sentinel values and are never reported to the caller.
type GeoResolver struct {
	countryDB countryReader
	cityDB    cityReader
	tz        tzFinder
	cache     *lru.Cache[string, GeoResult]

	country_handle *geoip2.Reader
	city_handle    *geoip2.Reader
}

// NewGeoResolver opens the country and city databases if present. Missing
// or unreadable databases are logged and skipped; the resolver still works,
// returning sentinel results.
func NewGeoResolver(country_path string, city_path string) *GeoResolver {
	r := &GeoResolver{}
	r.cache, _ = lru.New[string, GeoResult](geoCacheSize)

	if _, err := os.Stat(country_path); err == nil {
		db, err := geoip2.Open(country_path)
		if err != nil {
			log.Warning("geo: failed to open country database: %v", err)
		} else {
			r.country_handle = db
			r.countryDB = db
		}
	} else {
		log.Warning("geo: country database not found: %s", country_path)
	}

	if _, err := os.Stat(city_path); err == nil {
		db, err := geoip2.Open(city_path)
		if err != nil {
			log.Warning("geo: failed to open city database: %v", err)
		} else {
			r.city_handle = db
			r.cityDB = db
		}
	} else {
		log.Debug("geo: city database not found: %s", city_path)
	}

	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		log.Warning("geo: timezone finder unavailable: %v", err)
	} else {
		r.tz = finder
	}

	return r
}

func (r *GeoResolver) Close() {
	if r.country_handle != nil {
		r.country_handle.Close()
	}
	if r.city_handle != nil {
		r.city_handle.Close()
	}
}

// Resolve maps an IP to its geography. Never fails; any lookup error leaves
// the corresponding fields at their sentinel values.
func (r *GeoResolver) Resolve(ip string) GeoResult {
	if cached, ok := r.cache.Get(ip); ok {
		return cached
	}

	result := GeoResult{
		CountryCode: GEO_UNKNOWN,
		City:        GEO_UNKNOWN,
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		r.cache.Add(ip, result)
		return result
	}

	if r.countryDB != nil {
		if rec, err := r.countryDB.Country(parsed); err == nil && rec.Country.IsoCode != "" {
			result.CountryCode = rec.Country.IsoCode
		}
	}

	if r.cityDB != nil {
		if rec, err := r.cityDB.City(parsed); err == nil {
			if name := rec.City.Names["en"]; name != "" {
				result.City = name
			}
			if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
				result.Latitude = rec.Location.Latitude
				result.Longitude = rec.Location.Longitude
				result.HasCoords = true
			}
		}
	}

	if result.HasCoords && r.tz != nil {
		result.Timezone = r.tz.GetTimezoneName(result.Longitude, result.Latitude)
	}

	r.cache.Add(ip, result)
	return result
}
