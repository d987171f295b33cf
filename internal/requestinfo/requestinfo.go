// internal/requestinfo/requestinfo.go
//
// Per-request metadata used to tag audit envelopes.
//
// Context
// -------
// Envelope call sites want two best-effort hints: a compact user-agent
// summary and the caller's country.  Both lookups are read-only and
// pool-based, so they are safe under heavy concurrency.  The GeoLite2
// handle is optional; when absent the country stays empty.
//
// Dependencies
//   - github.com/avct/uasurfer        (UA parsing)
//   - github.com/oschwald/geoip2-golang (MaxMind lookup)

package requestinfo

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"

	"github.com/subvind/API-sub000/internal/cache"
)

// geoCacheSize bounds the per-IP country memo.
const geoCacheSize = 4096

// Info is inert: no handles, no large buffers, safe to log or encode.
type Info struct {
	UA         string // "Chrome 124 / Windows / Desktop", or "" when unknown
	Bot        bool
	CountryISO string // "US", "CA", ..., best effort
}

// Extractor owns the optional GeoLite2 handle plus a small per-IP memo
// so hot callers skip the mmap lookup.  A nil receiver or nil reader
// degrades to UA-only extraction.
type Extractor struct {
	geo     *geoip2.Reader
	geoMemo *cache.LRU[string, string]
}

// New opens the GeoLite2 database when path is non-empty.  A missing or
// unreadable database is not fatal; geo enrichment is simply skipped.
func New(path string) (*Extractor, error) {
	if path == "" {
		return &Extractor{}, nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Extractor{geo: r, geoMemo: cache.New[string, string](geoCacheSize)}, nil
}

// Close releases the GeoLite2 handle.
func (e *Extractor) Close() {
	if e != nil && e.geo != nil {
		_ = e.geo.Close()
	}
}

// FromRequest builds an Info from the inbound request.
func (e *Extractor) FromRequest(r *http.Request) Info {
	info := Info{}

	if raw := r.UserAgent(); raw != "" {
		u := uasurfer.Parse(raw)
		info.Bot = u.IsBot()
		info.UA = uaSummary(u)
	}

	if e != nil && e.geo != nil {
		if ip := clientIP(r); ip != nil {
			info.CountryISO = e.country(ip)
		}
	}
	return info
}

// country resolves the ISO code through the memo first.  Misses (and
// lookup failures) are cached as "" so a bad address never re-queries.
func (e *Extractor) country(ip net.IP) string {
	key := ip.String()
	if iso, ok := e.geoMemo.Get(key); ok {
		return iso
	}
	iso := ""
	if rec, err := e.geo.Country(ip); err == nil {
		iso = rec.Country.IsoCode
	}
	e.geoMemo.Add(key, iso)
	return iso
}

// uaSummary renders "Browser major / OS / Device".
func uaSummary(u *uasurfer.UserAgent) string {
	browser := strings.TrimPrefix(u.Browser.Name.String(), "Browser")
	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}
	parts := []string{
		browser + " " + strconv.Itoa(u.Browser.Version.Major),
		osName,
		deviceString(u.DeviceType),
	}
	return strings.Join(parts, " / ")
}

func deviceString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
