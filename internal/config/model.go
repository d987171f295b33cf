// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `SUBVIND_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling (see secrets.go), so the
// rest of the app only ever sees plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Database section
//

// Database holds the DSN template and its secret.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host,
// port, or flags without touching Vault.  The *secret* portion
// (`Password`) may be a `vault:` URI and is spliced into the template's
// single %s verb at boot.
type Database struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password" validate:"required"`
}

//
// MQTT section
//

// MQTT describes the message-bus broker that carries audit envelopes.
type MQTT struct {
	Broker   string `koanf:"broker" validate:"required"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

//
// Influx section
//

// Influx points at the time-series store that receives one point per
// consumed envelope.
type Influx struct {
	URL      string `koanf:"url"      validate:"required,url"`
	Database string `koanf:"database" validate:"required"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

//
// Token section
//

// Token configures credential signing.  Secret may be a `vault:` URI.
// TTLDays is the fixed lifetime stamped into every issued credential;
// there is no refresh protocol, so it is deliberately long.
type Token struct {
	Secret  string `koanf:"secret" validate:"required"`
	TTLDays int    `koanf:"ttl_days" validate:"min=0"`
}

//
// Retention section
//

// Retention tunes the audit sweeper.  Zero values fall back to the
// defaults in internal/audit (one-minute sweep, one-day max age).
type Retention struct {
	SweepSeconds int `koanf:"sweep_seconds" validate:"min=0"`
	MaxAgeHours  int `koanf:"max_age_hours" validate:"min=0"`
}

//
// GeoIP section
//

// GeoIP is optional; when Path is empty, envelope geo enrichment is
// skipped.
type GeoIP struct {
	Path string `koanf:"path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or SUBVIND_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string // SUBVIND_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	MQTT      MQTT      `koanf:"mqtt"`
	Influx    Influx    `koanf:"influx"`
	Token     Token     `koanf:"token"`
	Retention Retention `koanf:"retention"`
	GeoIP     GeoIP     `koanf:"geoip"`
	Paths     Paths     `koanf:"-"` // not loaded from config files
}
