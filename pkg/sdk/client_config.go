package sdk

// ClientConfig is the typed view of the options a single client is built from.
// Opaque options (credentials, debug, ua_append and friends) are kept apart
// because they may carry live values resolved by the container.
type ClientConfig struct {
	Region           string     `json:"region,omitempty"`
	Profile          string     `json:"profile,omitempty"`
	Retries          *int       `json:"retries,omitempty" validate:"omitempty,gte=0"`
	Endpoint         string     `json:"endpoint,omitempty"`
	Scheme           string     `json:"scheme,omitempty" validate:"omitempty,oneof=http https"`
	Service          string     `json:"service,omitempty"`
	SignatureVersion string     `json:"signature_version,omitempty"`
	Version          string     `json:"version,omitempty"`
	HTTP             HTTPConfig `json:"http"`

	Credentials       any            `json:"-"`
	Debug             any            `json:"-"`
	EndpointDiscovery any            `json:"-"`
	UserAgent         []string       `json:"-"`
	Extra             map[string]any `json:"-"`
}

// HTTPConfig mirrors the http option block.
type HTTPConfig struct {
	ConnectTimeout *float64 `json:"connect_timeout,omitempty" validate:"omitempty,gte=0"`
	Timeout        *float64 `json:"timeout,omitempty" validate:"omitempty,gte=0"`
	Delay          *int     `json:"delay,omitempty" validate:"omitempty,gte=0"`
	Debug          bool     `json:"debug,omitempty"`
	DecodeContent  *bool    `json:"decode_content,omitempty"`
	Synchronous    bool     `json:"synchronous,omitempty"`
	Stream         bool     `json:"stream,omitempty"`
	Sink           any      `json:"sink,omitempty"`
	Proxy          any      `json:"proxy,omitempty"`
	Verify         any      `json:"verify,omitempty"`
	Expect         any      `json:"expect,omitempty"`
}

// typedKeys are decoded into ClientConfig fields; every other key lands in
// Extra.
var typedKeys = map[string]struct{}{
	"region":             {},
	"profile":            {},
	"retries":            {},
	"endpoint":           {},
	"scheme":             {},
	"service":            {},
	"signature_version":  {},
	"version":            {},
	"http":               {},
	"credentials":        {},
	"debug":              {},
	"endpoint_discovery": {},
	"ua_append":          {},
}

var opaqueKeys = []string{"credentials", "debug", "endpoint_discovery", "ua_append"}
