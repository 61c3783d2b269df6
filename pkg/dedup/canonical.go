package dedup

import (
	"crypto/md5" //nolint:gosec // identity key, not security
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are dropped from canonical urls, utm_* is handled by prefix
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "yclid": true, "ref": true, "source": true,
	"ref_src": true, "mc_cid": true, "mc_eid": true,
}

// CanonicalURL lower-cases scheme and host, strips default ports, trailing path slash,
// fragment and tracking parameters. Remaining query parameters are sorted.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment, u.RawFragment = "", ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false
	return u.String()
}

// URLHash returns hex MD5 of the canonical url
func URLHash(raw string) string {
	sum := md5.Sum([]byte(CanonicalURL(raw))) //nolint:gosec // identity key
	return hex.EncodeToString(sum[:])
}
