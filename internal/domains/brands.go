package domains

import (
	"regexp"
	"strings"
)

// nationalBrands lists hotel/motel chain names used by the optional
// independent-only record filter. Matching is case-insensitive on word
// boundaries so "Best Western Plus" matches but "Westerner Motel" does not.
var nationalBrands = []string{
	// Marriott
	"marriott", "jw marriott", "ritz-carlton", "ritz carlton", "st. regis", "st regis",
	"w hotels", "w hotel", "sheraton", "westin", "le meridien",
	"renaissance", "autograph collection", "tribute portfolio", "courtyard",
	"fairfield inn", "fairfield", "springhill suites", "springhill", "residence inn",
	"towneplace suites", "towneplace", "ac hotels", "ac hotel", "aloft", "moxy",
	// Hilton
	"hilton", "waldorf astoria", "waldorf", "conrad", "lxr hotels", "lxr",
	"doubletree", "double tree", "curio collection", "curio", "canopy",
	"hilton garden inn", "hilton garden", "hampton inn", "hampton",
	"homewood suites", "homewood", "home2 suites", "home2", "tru by hilton",
	"spark by hilton",
	// Hyatt
	"hyatt", "park hyatt", "grand hyatt", "hyatt regency", "andaz",
	"hyatt place", "hyatt house",
	// IHG
	"ihg", "intercontinental", "kimpton", "hotel indigo", "voco",
	"crowne plaza", "holiday inn express", "holiday inn", "avid hotels", "avid",
	"even hotels", "staybridge suites", "staybridge", "candlewood suites", "candlewood",
	// Wyndham
	"wyndham grand", "wyndham", "la quinta", "wingate", "ramada", "days inn",
	"super 8", "super8", "microtel", "baymont", "howard johnson", "travelodge",
	// Choice
	"choice hotels", "cambria", "radisson", "comfort inn", "comfort suites",
	"quality inn", "sleep inn", "clarion", "econo lodge", "econolodge",
	"rodeway inn", "rodeway", "mainstay suites", "mainstay", "suburban studios",
	// Best Western
	"best western premier", "best western plus", "best western", "surestay",
	// G6 / Red Roof / extended stay
	"motel 6", "motel6", "studio 6", "studio6",
	"red roof plus", "red roof inn", "red roof",
	"extended stay america", "extended stay", "woodspring suites", "woodspring",
	// others
	"sonesta", "drury inn", "drury hotels", "drury", "omni hotels", "omni",
	"loews hotels", "loews", "graduate hotels", "graduate",
	"my place hotels", "my place", "cobblestone hotels", "cobblestone",
	"country inn and suites", "country inn", "scottish inns", "scottish inn",
	"knights inn", "budget host", "oyo",
}

var brandPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(nationalBrands))
	for _, brand := range nationalBrands {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(brand)+`\b`))
	}
	return patterns
}()

// IsNationalChain reports whether a business name matches a known national
// hotel/motel brand.
func IsNationalChain(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, p := range brandPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
