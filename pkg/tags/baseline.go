package tags

import (
	"strconv"

	"mercator-hq/palisade/pkg/request"
)

// Baseline builds the tag set every request starts from, before any global
// filter runs. These tags exist independent of any rule match and are
// always present in the audit trail: the human/bot classification and the
// descriptive request facts (section sizes, host, address, geo data).
//
// Absent geo data yields the literal value "nil" so the audit trail always
// carries the full tag vocabulary.
func Baseline(info *request.Info, human bool) *Tags {
	t := New()
	if human {
		t.Add("human", request.RequestLocation)
	} else {
		t.Add("bot", request.RequestLocation)
	}
	t.AddQualified("headers", strconv.Itoa(info.Headers.Len()), request.HeadersLocation)
	t.AddQualified("cookies", strconv.Itoa(info.Cookies.Len()), request.CookiesLocation)
	t.AddQualified("args", strconv.Itoa(info.Args.Len()), request.RequestLocation)
	t.AddQualified("host", info.Authority, request.RequestLocation)
	t.AddQualified("ip", info.Geo.IPStr, request.RequestLocation)
	t.AddQualified("geo-continent-name", orNil(info.Geo.ContinentName), request.RequestLocation)
	t.AddQualified("geo-continent-code", orNil(info.Geo.ContinentCode), request.RequestLocation)
	t.AddQualified("geo-city", orNil(info.Geo.City), request.RequestLocation)
	t.AddQualified("geo-country", orNil(info.Geo.CountryName), request.RequestLocation)
	t.AddQualified("geo-region", orNil(info.Geo.Region), request.RequestLocation)
	t.AddQualified("geo-subregion", orNil(info.Geo.Subregion), request.RequestLocation)
	if info.Geo.ASN == 0 {
		t.AddQualified("geo-asn", "nil", request.RequestLocation)
	} else {
		t.AddQualified("geo-asn", strconv.FormatUint(uint64(info.Geo.ASN), 10), request.RequestLocation)
	}
	return t
}

func orNil(s string) string {
	if s == "" {
		return "nil"
	}
	return s
}
