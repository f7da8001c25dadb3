package request

// LocationKind identifies which part of the request a Location points at.
type LocationKind string

const (
	// LocRequest designates the request as a whole.
	LocRequest LocationKind = "request"

	// LocIP designates the client address.
	LocIP LocationKind = "ip"

	// LocURI designates the full URI (path and query).
	LocURI LocationKind = "uri"

	// LocPath designates the decoded path.
	LocPath LocationKind = "path"

	// LocHeaders designates the header section as a whole.
	LocHeaders LocationKind = "headers"

	// LocCookies designates the cookie section as a whole.
	LocCookies LocationKind = "cookies"

	// LocHeaderValue designates one header and its value.
	LocHeaderValue LocationKind = "header_value"

	// LocArgValue designates one URI argument and its value.
	LocArgValue LocationKind = "uri_argument_value"

	// LocCookieValue designates one cookie and its value.
	LocCookieValue LocationKind = "cookie_value"
)

// Location is an evidence pointer into the request. It is purely
// descriptive: tags and block reasons record locations for the audit
// trail, but locations never drive control flow.
type Location struct {
	// Kind is the request part this location points at.
	Kind LocationKind `json:"kind"`

	// Name is the header, cookie or argument name for valued kinds.
	Name string `json:"name,omitempty"`

	// Value is the matched value for valued kinds.
	Value string `json:"value,omitempty"`
}

// Payload-free locations, ready to use.
var (
	RequestLocation = Location{Kind: LocRequest}
	IPLocation      = Location{Kind: LocIP}
	URILocation     = Location{Kind: LocURI}
	PathLocation    = Location{Kind: LocPath}
	HeadersLocation = Location{Kind: LocHeaders}
	CookiesLocation = Location{Kind: LocCookies}
)

// HeaderValueLocation points at a single header and its matched value.
func HeaderValueLocation(name, value string) Location {
	return Location{Kind: LocHeaderValue, Name: name, Value: value}
}

// ArgValueLocation points at a single URI argument and its matched value.
func ArgValueLocation(name, value string) Location {
	return Location{Kind: LocArgValue, Name: name, Value: value}
}

// CookieValueLocation points at a single cookie and its matched value.
func CookieValueLocation(name, value string) Location {
	return Location{Kind: LocCookieValue, Name: name, Value: value}
}

// String renders the location for log lines and reason descriptions.
func (l Location) String() string {
	switch l.Kind {
	case LocHeaderValue, LocArgValue, LocCookieValue:
		return string(l.Kind) + ":" + l.Name + "=" + l.Value
	default:
		return string(l.Kind)
	}
}
