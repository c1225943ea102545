// Package naming implements market name hashing and tiered pricing. Names are
// committed on chain as hashes; the plaintext never leaves the caller.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	basePrice    int64 = 10
	geoSurcharge int64 = 50
	longDiscount int64 = 20
	freeWords          = 3
)

// geoTerms carry a premium because they anchor a market to a physical area.
var geoTerms = []string{"la", "los angeles"}

// HashName returns the lowercase hex SHA-256 of the trimmed, lowercased name.
func HashName(name string) string {
	sum := sha256.Sum256([]byte(Normalize(name)))
	return hex.EncodeToString(sum[:])
}

// Normalize is the canonical form used for both hashing and pricing.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Price computes the registration price in $NIGHT. Geographic names pay a
// surcharge, every word past the third earns a discount, and the price never
// goes below zero.
func Price(name string) int64 {
	n := Normalize(name)
	price := basePrice
	if containsGeoTerm(n) {
		price += geoSurcharge
	}
	if extra := wordCount(n) - freeWords; extra > 0 {
		price -= longDiscount * int64(extra)
	}
	if price < 0 {
		price = 0
	}
	return price
}

// Quote bundles the hash and price for a candidate name.
type Quote struct {
	Name     string `json:"name"`
	NameHash string `json:"name_hash"`
	Price    int64  `json:"price"`
}

func QuoteFor(name string) Quote {
	return Quote{
		Name:     Normalize(name),
		NameHash: HashName(name),
		Price:    Price(name),
	}
}

func containsGeoTerm(normalized string) bool {
	for _, w := range strings.Fields(normalized) {
		for _, term := range geoTerms {
			if w == term {
				return true
			}
		}
	}
	// Multi-word terms cannot match on single fields.
	for _, term := range geoTerms {
		if strings.Contains(term, " ") && strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

func wordCount(normalized string) int {
	return len(strings.Fields(normalized))
}
