package types

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Defaults applied by ClientConfig.SetDefaults.
const (
	DefaultBaseURL       = "https://app.molecule.one"
	DefaultAPIVersion    = "api/v2"
	DefaultTokenVersion  = "v1"
	DefaultPollInterval  = 5 * time.Second
	DefaultTimeout       = 60 * time.Second
	DefaultRetryTotal    = 5
	DefaultRetryConnect  = 5
	DefaultBackoffFactor = 0.3
	DefaultMaxBackoff    = 120 * time.Second
)

// DefaultRetryStatuses are the status codes retried by the transport. 104
// and 111 are the connection-reset and connection-refused errno values; the
// transport also treats the matching socket errors as connection failures.
var DefaultRetryStatuses = []int{104, 111, 429, 502, 503, 504}

// DefaultRetryMethods are the methods the transport may replay on a
// forcelisted status. POST and DELETE are included.
var DefaultRetryMethods = []string{
	http.MethodHead,
	http.MethodGet,
	http.MethodOptions,
	http.MethodPost,
	http.MethodDelete,
	http.MethodPut,
}

// Credentials identify the caller to the scoring service.
type Credentials struct {
	// Token is the secret API token.
	Token string `json:"-" yaml:"-" mapstructure:"api_token"`

	// TokenVersion is the token format version (e.g. "v1").
	TokenVersion string `json:"token_version" yaml:"token_version" mapstructure:"token_version"`
}

// AuthorizationHeader returns the value of the Authorization header.
func (c Credentials) AuthorizationHeader() string {
	version := c.TokenVersion
	if version == "" {
		version = DefaultTokenVersion
	}
	return fmt.Sprintf("ApiToken-%s %s", version, c.Token)
}

// HTTPConfig holds shared HTTP settings.
type HTTPConfig struct {
	// Timeout is the per-request timeout of the underlying http.Client.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent overrides the User-Agent header. Empty means the library default.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty" mapstructure:"user_agent"`

	// RateLimit caps requests per second. Zero disables client-side limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RetryConfig controls transport-level retries.
type RetryConfig struct {
	// Total bounds the number of retries of any kind.
	Total int `json:"total" yaml:"total" mapstructure:"total"`

	// Connect bounds retries caused by connection failures.
	Connect int `json:"connect" yaml:"connect" mapstructure:"connect"`

	// BackoffFactor scales the exponential backoff, in seconds.
	BackoffFactor float64 `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`

	// MaxBackoff caps a single backoff sleep.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`

	// StatusForcelist lists the status codes that trigger a retry.
	StatusForcelist []int `json:"status_forcelist" yaml:"status_forcelist" mapstructure:"status_forcelist"`

	// AllowedMethods lists the methods that may be retried on a status code.
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" mapstructure:"allowed_methods"`
}

// SetDefaults fills unset fields. A negative Total or Connect disables that
// kind of retry.
func (r *RetryConfig) SetDefaults() {
	if r.Total == 0 {
		r.Total = DefaultRetryTotal
	}
	if r.Connect == 0 {
		r.Connect = DefaultRetryConnect
	}
	if r.BackoffFactor == 0 {
		r.BackoffFactor = DefaultBackoffFactor
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = DefaultMaxBackoff
	}
	if len(r.StatusForcelist) == 0 {
		r.StatusForcelist = append([]int(nil), DefaultRetryStatuses...)
	}
	if len(r.AllowedMethods) == 0 {
		r.AllowedMethods = append([]string(nil), DefaultRetryMethods...)
	}
}

// ClientConfig holds everything a client needs to talk to the service.
type ClientConfig struct {
	Credentials `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the service origin, without the API version path.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIVersion is the versioned path prefix appended to BaseURL.
	APIVersion string `json:"api_version" yaml:"api_version" mapstructure:"api_version"`

	// PollInterval is the delay between status polls while waiting for results.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`

	HTTP  HTTPConfig  `json:"http" yaml:"http" mapstructure:"http"`
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// SetDefaults fills unset fields with package defaults.
func (c *ClientConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.TokenVersion == "" {
		c.TokenVersion = DefaultTokenVersion
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultTimeout
	}
	c.Retry.SetDefaults()
}

// APIRoot returns the versioned API root, always ending in "/".
func (c ClientConfig) APIRoot() string {
	base := strings.TrimRight(c.BaseURL, "/")
	version := strings.Trim(c.APIVersion, "/")
	if version == "" {
		return base + "/"
	}
	return base + "/" + version + "/"
}

// Validate reports configuration errors that would make every request fail.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("api token is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.Retry.BackoffFactor < 0 {
		return fmt.Errorf("backoff factor must not be negative")
	}
	return nil
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// LedgerConfig locates the local search ledger.
type LedgerConfig struct {
	// Path is the SQLite database file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}
