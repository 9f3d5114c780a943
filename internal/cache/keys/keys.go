// Package keys derives cache keys from query coordinates.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/geo"
)

// Query is a coordinate resolved for caching: Key identifies the entry and
// Origin is the point the provider is queried at and distances are taken from.
type Query struct {
	Key    string
	Origin model.Coordinate
}

// Resolver maps coordinates to keys. The zero value keeps exact coordinate
// keys; with Snap set every coordinate moves to the centre of its H3 cell at Res.
type Resolver struct {
	Snap bool
	Res  int
}

func Exact() Resolver { return Resolver{} }

func H3(res int) Resolver { return Resolver{Snap: true, Res: res} }

// ForRes maps a configured resolution to a resolver; negative means exact.
func ForRes(res int) Resolver {
	if res < 0 {
		return Exact()
	}
	return H3(res)
}

func (r Resolver) Resolve(c model.Coordinate) (Query, error) {
	if !r.Snap {
		return Query{Key: c.Canonical(), Origin: c}, nil
	}
	centre, cell, err := geo.SnapToCell(c, r.Res)
	if err != nil {
		return Query{}, fmt.Errorf("resolve cache key: %w", err)
	}
	return Query{Key: fmt.Sprintf("h3:%d:%s", r.Res, cell), Origin: centre}, nil
}

// Storage namespaces key for a shared backend such as Redis.
func Storage(namespace, key string) string {
	safe := sanitizeForKey(strings.TrimSpace(key))

	const maxKeyTextLen = 96
	if len(safe) > maxKeyTextLen {
		safe = safe[:maxKeyTextLen]
	}

	sum := xxhash.Sum64String(key)
	return fmt.Sprintf("%s:%s:h=%016x", sanitizeForKey(namespace), safe, sum)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.' || r == ',':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
