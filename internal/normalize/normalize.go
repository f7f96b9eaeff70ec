// Package normalize turns raw business identity fields into canonical
// comparison keys. Every function here is pure and deterministic: the same
// input always yields the same output, across runs and machines, because the
// fingerprints derived from these keys underlie cache reuse and dedup.
package normalize

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

//go:embed abbreviations.yaml
var abbreviationsYAML []byte

// abbreviations maps common street-suffix and directional abbreviations to
// their expanded forms. Loaded once from the embedded table; callers may
// extend it via Table.
var abbreviations = func() map[string]string {
	var doc struct {
		Street map[string]string `yaml:"street"`
	}
	if err := yaml.Unmarshal(abbreviationsYAML, &doc); err != nil {
		panic("normalize: embedded abbreviations table: " + err.Error())
	}
	return doc.Street
}()

// suffixPattern matches business entity suffixes trimmed from names.
var suffixPattern = regexp.MustCompile(`(?i),?\s*(inc\.?|llc\.?|ltd\.?|co\.?|corp\.?|corporation|company|llp|lp|pllc|pc|p\.?c\.?)$`)

// unitPattern matches suite/unit/apartment suffixes stripped from addresses
// for the address-only comparison path.
var unitPattern = regexp.MustCompile(`(?i)[,\s]+(suite|ste\.?|unit|apt\.?|apartment|bldg\.?|building|fl\.?|floor|rm\.?|room|#)\s*#?\s*[\w-]*$`)

// foldTransformer strips diacritics: NFD decomposition, drop combining
// marks, recompose.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Table returns a copy of the active abbreviation table, for callers that
// want to merge config-supplied overrides via SetAbbreviations.
func Table() map[string]string {
	out := make(map[string]string, len(abbreviations))
	for k, v := range abbreviations {
		out[k] = v
	}
	return out
}

// SetAbbreviations merges extra abbreviation mappings into the table. Keys
// are lowercased. Intended for startup configuration only; not safe to call
// concurrently with normalization.
func SetAbbreviations(extra map[string]string) {
	for k, v := range extra {
		abbreviations[strings.ToLower(k)] = strings.ToLower(v)
	}
}

// Name canonicalizes a business name: diacritic fold, lowercase, entity
// suffix strip, punctuation strip, whitespace collapse.
func Name(name string) string {
	name = fold(name)
	name = suffixPattern.ReplaceAllString(strings.TrimSpace(name), "")
	return collapse(stripPunct(strings.ToLower(name)))
}

// Address canonicalizes a street address: diacritic fold, lowercase,
// punctuation strip, abbreviation expansion, whitespace collapse.
func Address(address string) string {
	address = strings.ToLower(fold(address))
	address = collapse(stripPunct(address))
	if address == "" {
		return ""
	}
	words := strings.Fields(address)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// AddressBase returns the address with any suite/unit suffix removed, for
// the address-only comparison path.
func AddressBase(address string) string {
	return Address(unitPattern.ReplaceAllString(strings.TrimSpace(address), ""))
}

// City canonicalizes a city name.
func City(city string) string {
	return collapse(stripPunct(strings.ToLower(fold(city))))
}

// Record normalizes a record's identity fields in one call.
func Record(r model.Record) (normName, normAddress string) {
	return Name(r.Name), Address(r.Address)
}

// Fingerprint derives the deterministic cache/dedup key for a record:
// sha256 over normalized name, address, and city (city as tiebreaker).
func Fingerprint(r model.Record) string {
	key := Name(r.Name) + "|" + Address(r.Address) + "|" + City(r.City)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '&':
			b.WriteString(" and ")
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
