package request

import (
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Field holds one normalized request section (headers, cookies or query
// arguments), keyed by lowercase name. The external normalizer joins
// duplicate values before handing the snapshot over.
type Field map[string]string

// Get returns the value for name and whether it is present.
func (f Field) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Len returns the number of entries in the section.
func (f Field) Len() int { return len(f) }

// GeoIP carries the geo enrichment attached by the external normalizer.
// String fields are empty when the geo database has no data; ASN is zero
// when unknown.
type GeoIP struct {
	// IP is the client address. The zero Addr means the normalizer could
	// not parse one.
	IP netip.Addr

	// IPStr is the address exactly as the proxy reported it.
	IPStr string

	ContinentName string
	ContinentCode string

	// CountryISO is the two-letter country code.
	CountryISO string

	CountryName string
	City        string
	Region      string
	Subregion   string

	// Company is the organization registered for the address block.
	Company string

	// ASN is the autonomous system number, zero when unknown.
	ASN uint32

	// Longitude and Latitude are nil when the database has no coordinates.
	Longitude *float64
	Latitude  *float64

	ASName   string
	ASDomain string
	ASType   string

	CompanyCountry string
	CompanyDomain  string
	CompanyType    string

	MobileCarrier string
	MobileCountry string
	MobileMCC     string
	MobileMNC     string
}

// SecPolicy identifies the security policy entry that routed the request
// to this evaluation, along with the per-policy toggles the audit record
// reports.
type SecPolicy struct {
	// PolicyID is the security policy id.
	PolicyID string

	// EntryID is the matched policy entry id.
	EntryID string

	// ACLEnabled reports whether the ACL stage is active for this entry.
	ACLEnabled bool

	// ContentFilterEnabled reports whether the WAF stage is active.
	ContentFilterEnabled bool

	// ContentFilterProfile is the WAF profile id to use. An unknown or
	// empty id falls back to the default profile.
	ContentFilterProfile string

	// LimitAmount is the number of rate-limit rules attached to the entry.
	// Rate limiting runs outside this engine; the count is audit data.
	LimitAmount int
}

// Info is the immutable request snapshot evaluated by the engine. One Info
// is built per request by the external normalizer and shared read-only by
// every evaluation stage.
type Info struct {
	// RequestID is the proxy-assigned request id, empty when absent.
	RequestID string

	// Method is the HTTP method.
	Method string

	// Authority is the host the request was addressed to.
	Authority string

	// Path is the decoded path without the query string.
	Path string

	// URI is the full request target (path and query).
	URI string

	// Query is the raw query string, without the leading '?'.
	Query string

	// PathParts is the structural breakdown of the path ("path" plus
	// "part1".."partN" segments). See PathParts.
	PathParts map[string]string

	Args    Field
	Headers Field
	Cookies Field

	// Session is the session identifier computed by the normalizer.
	Session string

	// SessionIDs are the additional session identifiers, keyed by name.
	SessionIDs map[string]string

	// Plugins carries extra name/value data supplied by proxy plugins.
	Plugins map[string]string

	// ContainerName is the serving container, when known.
	ContainerName string

	// Timestamp is when the request entered the proxy.
	Timestamp time.Time

	Geo    GeoIP
	Policy SecPolicy
}

// PathParts breaks a decoded path into the structural map stored on Info:
// the whole path under "path" and each segment under "part1".."partN".
func PathParts(path string) map[string]string {
	out := map[string]string{"path": path}
	n := 0
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		n++
		out["part"+strconv.Itoa(n)] = part
	}
	return out
}
