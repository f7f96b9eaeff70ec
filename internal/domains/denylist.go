// Package domains decides whether a candidate URL can ever be accepted as a
// business's official website, and recognizes national chain brands.
package domains

import (
	_ "embed"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed denylist.yaml
var denylistYAML []byte

var (
	// denied holds registrable domains that can never be an official
	// website: social networks, review/directory sites, map services,
	// delivery aggregators, link shorteners.
	denied map[string]bool

	// multiLabelSuffixes lists public suffixes made of more than one label
	// (e.g. co.uk), so registrable-domain extraction keeps three labels.
	multiLabelSuffixes map[string]bool
)

func init() {
	var doc struct {
		Denied        []string `yaml:"denied"`
		MultiSuffixes []string `yaml:"multi_label_suffixes"`
	}
	if err := yaml.Unmarshal(denylistYAML, &doc); err != nil {
		panic("domains: embedded denylist: " + err.Error())
	}
	denied = make(map[string]bool, len(doc.Denied))
	for _, d := range doc.Denied {
		denied[strings.ToLower(d)] = true
	}
	multiLabelSuffixes = make(map[string]bool, len(doc.MultiSuffixes))
	for _, s := range doc.MultiSuffixes {
		multiLabelSuffixes[strings.ToLower(s)] = true
	}
}

// Registrable extracts the registrable domain from a URL: the public suffix
// plus one label. Subdomains are dropped (www.facebook.com → facebook.com).
// Returns "" for unparseable or non-HTTP(S) URLs.
func Registrable(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.Contains(host, "..") {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	// Default: last two labels. Keep three when the last two form a
	// multi-label public suffix (example.co.uk).
	n := 2
	if len(labels) >= 3 && multiLabelSuffixes[strings.Join(labels[len(labels)-2:], ".")] {
		n = 3
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

// IsAllowed reports whether a candidate URL may become a result website.
// Malformed and non-HTTP(S) URLs are rejected outright; otherwise the
// registrable domain must not be on the denylist.
func IsAllowed(rawURL string) bool {
	reg := Registrable(rawURL)
	if reg == "" {
		return false
	}
	return !denied[reg]
}
