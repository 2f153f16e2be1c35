// Package orgmatch decides whether a listing belongs to one of the tracked
// organizations. Matching strategies are an ordered list tried in sequence:
// exact canonical name, synonym phrase, token prefix, title-token fallback,
// and optional fuzzy similarity. First success wins; ties between tags break
// in strategy order.
package orgmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical organization tags.
const (
	TagForsvar = "forsvar"
	TagPST     = "pst"
	TagNSM     = "nsm"
)

// Org describes one tracked organization: its canonical tag, primary name,
// synonym phrases, and token prefixes. All values must be pre-normalized.
type Org struct {
	Tag      string
	Primary  string
	Synonyms []string
	Prefixes []string
}

// Config is the immutable matcher configuration. No ambient globals: callers
// construct it once and pass it in.
type Config struct {
	Orgs []Org
	// TitlePrefixes are the token prefixes the title fallback may use. The
	// fallback only runs when the sector filter was applied upstream.
	TitlePrefixes map[string]string // prefix -> tag
}

// DefaultConfig tracks Forsvaret (and Forsvars* agencies), PST, and NSM.
func DefaultConfig() Config {
	return Config{
		Orgs: []Org{
			{Tag: TagForsvar, Primary: "forsvar", Prefixes: []string{"forsvar"}},
			{Tag: TagPST, Primary: "pst", Synonyms: []string{"pst", "politiets sikkerhetstjeneste"}},
			{Tag: TagNSM, Primary: "nsm", Synonyms: []string{"nsm", "nasjonal sikkerhetsmyndighet"}},
		},
		TitlePrefixes: map[string]string{"forsvar": TagForsvar},
	}
}

// Match is a successful org match.
type Match struct {
	Tag        string
	Confidence float64
	// Provenance names the strategy that matched: employer_exact,
	// employer_synonym, employer_prefix, title_prefix, or employer_fuzzy_<tag>.
	Provenance string
}

// Matcher applies the configured strategies.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher for the given configuration.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize prepares text for matching: diacritics stripped (with Norwegian
// ø/æ transliteration), lowercased, punctuation removed except hyphens joining
// two word characters, whitespace collapsed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t, _, err := transform.String(stripMarks, text)
	if err != nil {
		t = text
	}
	t = strings.ToLower(t)
	t = strings.NewReplacer("ø", "o", "æ", "ae").Replace(t)

	rs := []rune(t)
	var b strings.Builder
	b.Grow(len(t))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '-' && i > 0 && i < len(rs)-1 &&
			isWordRune(rs[i-1]) && isWordRune(rs[i+1]):
			// Internal hyphens are part of compound names; keep them.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokens normalizes and splits into whitespace-delimited tokens.
func Tokens(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// Match resolves employer (and optionally title) text to an organization tag.
// The title fallback is only evaluated when sectorFiltered is true; its
// matches carry a distinct provenance so downstream can treat them as lower
// trust. fuzzyThreshold <= 0 disables the fuzzy strategy. Returns ok=false
// when nothing matched.
func (m *Matcher) Match(employer, title string, sectorFiltered bool, fuzzyThreshold float64) (Match, bool) {
	empNorm := Normalize(employer)

	if empNorm != "" {
		if match, ok := m.matchEmployer(empNorm); ok {
			return match, true
		}
	}

	if sectorFiltered && title != "" {
		for _, tok := range Tokens(title) {
			for prefix, tag := range m.cfg.TitlePrefixes {
				if strings.HasPrefix(tok, prefix) {
					return Match{Tag: tag, Confidence: 1.0, Provenance: "title_prefix"}, true
				}
			}
		}
	}

	if empNorm != "" && fuzzyThreshold > 0 {
		if match, ok := m.matchFuzzy(empNorm, fuzzyThreshold); ok {
			return match, true
		}
	}

	return Match{}, false
}

func (m *Matcher) matchEmployer(empNorm string) (Match, bool) {
	// Exact canonical names.
	for _, org := range m.cfg.Orgs {
		if empNorm == org.Primary {
			return Match{Tag: org.Tag, Confidence: 1.0, Provenance: "employer_exact"}, true
		}
	}

	// Synonym phrase containment.
	for _, org := range m.cfg.Orgs {
		for _, syn := range org.Synonyms {
			if syn != "" && strings.Contains(empNorm, syn) {
				return Match{Tag: org.Tag, Confidence: 1.0, Provenance: "employer_synonym"}, true
			}
		}
	}

	// Token prefix rule.
	tokens := strings.Split(empNorm, " ")
	for _, org := range m.cfg.Orgs {
		for _, prefix := range org.Prefixes {
			for _, tok := range tokens {
				if strings.HasPrefix(tok, prefix) {
					return Match{Tag: org.Tag, Confidence: 1.0, Provenance: "employer_prefix"}, true
				}
			}
		}
	}

	return Match{}, false
}

func (m *Matcher) matchFuzzy(empNorm string, threshold float64) (Match, bool) {
	best := Match{}
	for _, org := range m.cfg.Orgs {
		phrases := append([]string{org.Primary}, org.Synonyms...)
		for _, p := range phrases {
			score := tokenSetSimilarity(empNorm, p)
			if score > best.Confidence {
				best = Match{Tag: org.Tag, Confidence: score, Provenance: "employer_fuzzy_" + org.Tag}
			}
		}
	}
	if best.Confidence >= threshold {
		return best, true
	}
	return Match{}, false
}

// tokenSetSimilarity is a 0..1 token-set overlap score (Jaccard over distinct
// tokens, with per-token prefix credit so close misspellings still score).
func tokenSetSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	matched := 0.0
	for tok := range ta {
		if tb[tok] {
			matched++
			continue
		}
		bestPartial := 0.0
		for other := range tb {
			if p := prefixOverlap(tok, other); p > bestPartial {
				bestPartial = p
			}
		}
		matched += bestPartial
	}

	return matched / float64(max(len(ta), len(tb)))
}

// prefixOverlap scores how much of the shorter token is a shared prefix of
// the longer one, discounted by the length difference.
func prefixOverlap(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n := min(len(ra), len(rb))
	common := 0
	for common < n && ra[common] == rb[common] {
		common++
	}
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	score := float64(common) / float64(longest)
	if score < 0.6 {
		return 0
	}
	return score
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
