package intent

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"academic-advisor/internal/models"
)

// KeywordConfidence is reported for an unambiguous keyword match.
const KeywordConfidence = 0.95

var keywordTable = map[models.Intent][]string{
	models.IntentAnalyzeProgress: {
		"gpa", "my grades", "remaining", "credit hours", "completed hours", "progress",
		"معدل", "علامتي", "التقدم", "الساعات", "المتبقية",
	},
	models.IntentSimulateGPA: {
		"expected gpa", "simulate", "simulation", "what if i get", "projected gpa",
		"محاكاة", "توقع", "احسب معدلي",
	},
	models.IntentGraphQuery: {
		"skills", "skill", "path", "specialization", "specializations", "track",
		"مهارات", "مسار", "تخصص", "ترابط",
	},
	models.IntentQueryRAG: {
		"regulation", "regulations", "policy", "study plan", "course description", "rules",
		"لائحة", "لوائح", "نظام", "قانون", "خطة", "مقرر",
	},
	models.IntentGeneralChat: {
		"hello", "hi", "hey", "thanks", "thank you", "good morning",
		"مرحبا", "السلام عليكم", "شكرا", "أهلا",
	},
}

type matcher struct {
	intent  models.Intent
	keyword string
	re      *regexp.Regexp // nil for non-ASCII keywords, matched by substring
}

type span struct {
	intent     models.Intent
	keyword    string
	start, end int
}

// KeywordMatcher scores a question against the bilingual keyword tables.
type KeywordMatcher struct {
	matchers []matcher
}

func NewKeywordMatcher() *KeywordMatcher {
	return newKeywordMatcher(keywordTable)
}

func newKeywordMatcher(table map[models.Intent][]string) *KeywordMatcher {
	km := &KeywordMatcher{}
	for _, in := range models.AllIntents {
		for _, kw := range table[in] {
			kw = strings.ToLower(kw)
			m := matcher{intent: in, keyword: kw}
			if isASCII(kw) {
				m.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
			km.matchers = append(km.matchers, m)
		}
	}
	return km
}

// Match returns the single intent with the most keyword hits. ok is false
// when nothing matched or the top count is shared by several intents.
func (km *KeywordMatcher) Match(question string) (models.Intent, bool) {
	counts := km.Counts(question)
	best, bestCount, tied := models.Intent(""), 0, false
	for _, in := range models.AllIntents {
		n := counts[in]
		switch {
		case n > bestCount:
			best, bestCount, tied = in, n, false
		case n == bestCount && n > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return "", false
	}
	return best, true
}

// Counts reports distinct keyword hits per intent. A hit lying inside a
// longer hit of another intent is not counted, so "expected gpa" is not
// also a progress question.
func (km *KeywordMatcher) Counts(question string) map[models.Intent]int {
	lowered := strings.ToLower(question)

	var spans []span
	for _, m := range km.matchers {
		if m.re != nil {
			for _, loc := range m.re.FindAllStringIndex(lowered, -1) {
				spans = append(spans, span{m.intent, m.keyword, loc[0], loc[1]})
			}
			continue
		}
		for from := 0; from < len(lowered); {
			i := strings.Index(lowered[from:], m.keyword)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, span{m.intent, m.keyword, start, start + len(m.keyword)})
			from = start + len(m.keyword)
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].end-spans[i].start > spans[j].end-spans[j].start
	})

	seen := make(map[string]bool)
	counts := make(map[models.Intent]int)
	for i, s := range spans {
		if subsumed(s, spans[:i]) {
			continue
		}
		id := string(s.intent) + "\x00" + s.keyword
		if seen[id] {
			continue
		}
		seen[id] = true
		counts[s.intent]++
	}
	return counts
}

func subsumed(s span, longer []span) bool {
	for _, o := range longer {
		if o.intent != s.intent && o.end-o.start > s.end-s.start && o.start <= s.start && s.end <= o.end {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
