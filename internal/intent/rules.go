package intent

import (
	"regexp"
	"strings"
)

// ---------- package-level compiled regexes ----------

var (
	leadWordRE       = regexp.MustCompile(`(?i)\blead\b`)
	leadCreateVerbRE = regexp.MustCompile(`(?i)\b(add|create|register|new)\b`)
	visitKeywordRE   = regexp.MustCompile(`(?i)\b(visit|appointment|meeting|schedule)\b`)
	updateKeywordRE  = regexp.MustCompile(`(?i)\b(update|mark|status)\b`)

	capWordRE = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	phoneRE  = regexp.MustCompile(`(\+91[-\s]?)?\d{5}[-\s]?\d{5}`)
	cityRE   = regexp.MustCompile(`(?i)\b(?:city|from|in)\s+([A-Za-z]+)`)
	sourceRE = regexp.MustCompile(`(?i)\b(?:via|source|referral|through|from)\s+([A-Za-z]+)`)

	leadIDRE    = regexp.MustCompile(`(?i)\blead\s+([A-Za-z0-9-]{3,})`)
	statusRE    = regexp.MustCompile(`(?i)\b(NEW|IN[ _]PROGRESS|FOLLOW[ _]UP|WON|LOST)\b`)
	rawStatusRE = regexp.MustCompile(`(?i)\bstatus\s+(?:to\s+|is\s+)?([A-Za-z_]+)`)
	notesRE     = regexp.MustCompile(`(?i)\bnotes?:?\s+(.+)$`)
	nonDigitRE  = regexp.MustCompile(`\D`)
)

// visitTimePatterns capture time expressions as raw text, most specific first.
// The expression is carried verbatim; semantic date parsing is the backend's concern.
var visitTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:at|on)\s+(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`),
	regexp.MustCompile(`(?i)\b(?:at|on)\s+(\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2})`),
	regexp.MustCompile(`(?i)\b(?:at|on)\s+((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}\s+\d{1,2}\s*(?:AM|PM)?)`),
	regexp.MustCompile(`(?i)\b((?:next\s+)?(?:tomorrow|today|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\s+(?:at\s+)?(\d{1,2}(?::\d{2})?\s*(?:AM|PM)?)`),
	regexp.MustCompile(`(?i)\b(?:at|on)\s+(\d{1,2}(?::\d{2})?\s*(?:AM|PM)?)`),
	regexp.MustCompile(`(?i)(\d{1,2}:\d{2}(?:\s*(?:AM|PM))?)`),
}

// nameStopWords filters capitalized word pairs that are command vocabulary,
// not person names.
var nameStopWords = map[string]struct{}{
	"add": {}, "create": {}, "register": {}, "new": {}, "lead": {},
	"update": {}, "mark": {}, "schedule": {}, "visit": {}, "phone": {},
	"city": {}, "from": {}, "source": {}, "status": {}, "notes": {},
	"next": {}, "appointment": {}, "meeting": {},
}

// leadIDStopWords are tokens that follow "lead" but are never identifiers.
var leadIDStopWords = map[string]struct{}{
	"at": {}, "on": {}, "for": {}, "with": {}, "and": {}, "or": {},
	"status": {}, "named": {}, "called": {},
}

// RuleClassifier is the deterministic, pattern-driven classifier. It is
// the fallback path and the system of record when AI classification is
// unavailable; same input always yields the same output.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify maps a segment to an intent and best-effort entities.
// Unrecognizable text yields UNKNOWN with confidence 0; Classify never fails.
func (c *RuleClassifier) Classify(text string) Classification {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return unknownClassification()
	}
	if matchesLeadCreate(trimmed) {
		return classification(LeadCreate, c.extractLeadCreate(trimmed))
	}
	if matchesVisitSchedule(trimmed) {
		return classification(VisitSchedule, c.extractVisitSchedule(trimmed))
	}
	if matchesLeadUpdate(trimmed) {
		return classification(LeadUpdate, c.extractLeadUpdate(trimmed))
	}
	return unknownClassification()
}

func (c *RuleClassifier) extractLeadCreate(text string) Entities {
	ents := Entities{}

	if name, ok := extractName(text); ok {
		ents["name"] = name
	}
	if m := phoneRE.FindString(text); m != "" {
		ents["phone"] = nonDigitRE.ReplaceAllString(m, "")
	}
	if m := cityRE.FindStringSubmatch(text); m != nil {
		ents["city"] = strings.TrimSpace(m[1])
	}
	for _, m := range sourceRE.FindAllStringSubmatch(text, -1) {
		candidate := strings.ToLower(m[1])
		if containsString(KnownSources, candidate) {
			ents["source"] = capitalize(candidate)
			break
		}
	}

	return ents
}

func (c *RuleClassifier) extractVisitSchedule(text string) Entities {
	ents := Entities{}

	if id, ok := extractLeadID(text); ok {
		ents["lead_id"] = id
	}
	if raw, ok := extractVisitTime(text); ok {
		ents["visit_time"] = raw
	}
	if m := notesRE.FindStringSubmatch(text); m != nil {
		ents["notes"] = strings.TrimSpace(m[1])
	}

	return ents
}

func (c *RuleClassifier) extractLeadUpdate(text string) Entities {
	ents := Entities{}

	if id, ok := extractLeadID(text); ok {
		ents["lead_id"] = id
	}
	if m := statusRE.FindStringSubmatch(text); m != nil {
		ents["status"] = strings.ReplaceAll(strings.ToUpper(m[1]), " ", "_")
	} else if m := rawStatusRE.FindStringSubmatch(text); m != nil {
		// Carry the raw token so validation can report the enum violation.
		ents["status"] = strings.ToUpper(m[1])
	}
	if m := notesRE.FindStringSubmatch(text); m != nil {
		ents["notes"] = strings.TrimSpace(m[1])
	}

	return ents
}

// ---------- keyword predicates (shared with the splitter) ----------

func matchesLeadCreate(text string) bool {
	return leadWordRE.MatchString(text) && leadCreateVerbRE.MatchString(text)
}

func matchesVisitSchedule(text string) bool {
	return visitKeywordRE.MatchString(text)
}

func matchesLeadUpdate(text string) bool {
	return updateKeywordRE.MatchString(text)
}

func hasIntentKeyword(text string) bool {
	return matchesLeadCreate(text) || matchesVisitSchedule(text) || matchesLeadUpdate(text)
}

// ---------- extraction helpers ----------

func extractLeadID(text string) (string, bool) {
	for _, m := range leadIDRE.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if _, stop := leadIDStopWords[strings.ToLower(candidate)]; stop {
			continue
		}
		return candidate, true
	}
	return "", false
}

func extractVisitTime(text string) (string, bool) {
	for _, re := range visitTimePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 2 && strings.TrimSpace(m[2]) != "" {
			return strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[2]), true
		}
		if strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// extractName picks the first pair of adjacent capitalized words where
// neither word is command vocabulary.
func extractName(text string) (string, bool) {
	idxs := capWordRE.FindAllStringIndex(text, -1)
	for i := 0; i+1 < len(idxs); i++ {
		first := text[idxs[i][0]:idxs[i][1]]
		second := text[idxs[i+1][0]:idxs[i+1][1]]
		if isNameStopWord(first) || isNameStopWord(second) {
			continue
		}
		if strings.TrimSpace(text[idxs[i][1]:idxs[i+1][0]]) != "" {
			continue
		}
		return first + " " + second, true
	}
	return "", false
}

func isNameStopWord(word string) bool {
	_, stop := nameStopWords[strings.ToLower(word)]
	return stop
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// confidence is 0.5 for the keyword match plus 0.1 per required schema
// field extracted, capped at 1.0.
func classification(in Intent, ents Entities) Classification {
	score := 0.5
	if sch, err := SchemaFor(in); err == nil {
		for _, field := range sch.Required {
			if strings.TrimSpace(ents[field]) != "" {
				score += 0.1
			}
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return Classification{Intent: in, Entities: ents, Confidence: score, Source: SourceRules}
}

func unknownClassification() Classification {
	return Classification{Intent: Unknown, Entities: Entities{}, Confidence: 0, Source: SourceRules}
}
