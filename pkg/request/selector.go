package request

import "strconv"

// SelectorKind identifies which request field a Selector reads.
type SelectorKind string

const (
	SelIP        SelectorKind = "ip"
	SelPath      SelectorKind = "path"
	SelURI       SelectorKind = "uri"
	SelQuery     SelectorKind = "query"
	SelMethod    SelectorKind = "method"
	SelAuthority SelectorKind = "authority"
	SelCountry   SelectorKind = "country"
	SelASN       SelectorKind = "asn"
	SelSession   SelectorKind = "session"
	SelHeader    SelectorKind = "header"
	SelCookie    SelectorKind = "cookie"
	SelArg       SelectorKind = "arg"

	// SelTags selects the whole tag set. It is resolved by the template
	// renderer, which owns the tag set; Select reports it as absent.
	SelTags SelectorKind = "tags"
)

// Selector extracts one named value from a request snapshot. Name is only
// meaningful for the header, cookie and arg kinds.
type Selector struct {
	Kind SelectorKind
	Name string
}

// Select returns the selected value and whether the request carries it.
func (s Selector) Select(info *Info) (string, bool) {
	switch s.Kind {
	case SelIP:
		return info.Geo.IPStr, info.Geo.IPStr != ""
	case SelPath:
		return info.Path, true
	case SelURI:
		return info.URI, true
	case SelQuery:
		return info.Query, true
	case SelMethod:
		return info.Method, true
	case SelAuthority:
		return info.Authority, true
	case SelCountry:
		return info.Geo.CountryISO, info.Geo.CountryISO != ""
	case SelASN:
		if info.Geo.ASN == 0 {
			return "", false
		}
		return strconv.FormatUint(uint64(info.Geo.ASN), 10), true
	case SelSession:
		return info.Session, info.Session != ""
	case SelHeader:
		return info.Headers.Get(s.Name)
	case SelCookie:
		return info.Cookies.Get(s.Name)
	case SelArg:
		return info.Args.Get(s.Name)
	default:
		return "", false
	}
}
