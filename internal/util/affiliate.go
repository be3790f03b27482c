package util

import (
	"net/url"
	"strings"
)

// trackingParams are marketplace query parameters that vary per search
// session. They are stripped so the same item always yields the same URL.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"hash", "var", "norover", "mkevt", "mkrid", "mkcid",
}

// NormalizeItemURL forces https and removes per-session tracking parameters
// from a marketplace item URL.
func NormalizeItemURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	if parsed.Scheme == "http" {
		parsed.Scheme = "https"
	}
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
		parsed.RawPath = ""
	}
	q := parsed.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// DecorateAffiliateURL tags an item URL with the operator's affiliate
// campaign id. Any pre-existing campaign id is replaced so another
// publisher's tag never survives into the catalog. The second return value
// reports whether the URL was changed.
func DecorateAffiliateURL(rawURL, campaignID string) (string, bool) {
	if campaignID == "" {
		return rawURL, false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}

	q := parsed.Query()
	if q.Get("campid") == campaignID {
		return rawURL, false
	}
	q.Set("campid", campaignID)
	parsed.RawQuery = q.Encode()
	return parsed.String(), true
}
