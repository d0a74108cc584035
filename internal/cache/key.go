package cache

import (
	"strconv"
	"strings"

	"conti/internal/core"
)

// KeySeparator delimits the segments of an encoded cache key.
const KeySeparator = "::"

type (
	// Key namespaces a cached query result. Two keys share a Prefix when
	// they have the same domain and owner; the signature distinguishes the
	// filter parameters that produced the payload.
	Key struct {
		Domain    core.Domain
		Owner     string
		Signature string
	}

	// Prefix addresses every key of one domain under one owner. Matching is
	// structural, so a domain can never collide with another domain that
	// happens to share a string prefix.
	Prefix struct {
		Domain core.Domain
		Owner  string
	}
)

// NewKey builds the cache key for a filtered query. The signature is a
// deterministic encoding of the filter parameters.
func NewKey(domain core.Domain, owner string, parts ...string) Key {
	return Key{
		Domain:    domain,
		Owner:     owner,
		Signature: strings.Join(parts, KeySeparator),
	}
}

// QuerySignature encodes the read-path filter parameters. Empty filters are
// kept as empty segments so that distinct filter sets never alias.
func QuerySignature(startDate, endDate, category string, limit int) string {
	return strings.Join(
		[]string{startDate, endDate, category, strconv.Itoa(limit)},
		KeySeparator,
	)
}

// Encode renders the key as a string. Used only at the storage boundary;
// prefix matching never parses it back.
func (k Key) Encode() string {
	return string(k.Domain) + KeySeparator + k.Owner + KeySeparator + k.Signature
}

// Prefix returns the domain+owner prefix this key belongs to.
func (k Key) Prefix() Prefix {
	return Prefix{Domain: k.Domain, Owner: k.Owner}
}

// Matches reports whether the key falls under the prefix.
func (p Prefix) Matches(k Key) bool {
	return k.Domain == p.Domain && k.Owner == p.Owner
}
