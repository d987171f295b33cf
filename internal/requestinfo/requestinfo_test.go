// internal/requestinfo/requestinfo_test.go

package requestinfo

import (
	"net/http/httptest"
	"testing"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestFromRequestBrowser(t *testing.T) {
	e, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := httptest.NewRequest("GET", "/organizations/abc", nil)
	r.Header.Set("User-Agent", chromeUA)

	info := e.FromRequest(r)
	if info.Bot {
		t.Fatal("Chrome UA flagged as bot")
	}
	if info.UA != "Chrome 124 / Windows / Desktop" {
		t.Fatalf("UA summary = %q", info.UA)
	}
	if info.CountryISO != "" {
		t.Fatalf("no GeoLite2 handle, CountryISO = %q", info.CountryISO)
	}
}

func TestFromRequestBot(t *testing.T) {
	e, _ := New("")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", googlebotUA)

	if info := e.FromRequest(r); !info.Bot {
		t.Fatal("Googlebot UA not flagged as bot")
	}
}

func TestFromRequestNoUserAgent(t *testing.T) {
	e, _ := New("")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Del("User-Agent")

	info := e.FromRequest(r)
	if info.UA != "" || info.Bot {
		t.Fatalf("empty UA should stay inert, got %+v", info)
	}
}
