package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// Kind is the action a query asks for
type Kind string

const (
	// KindListCases lists test cases matching a filter
	KindListCases Kind = "list_cases"
	// KindCountCases counts instead of listing
	KindCountCases Kind = "count_cases"
	// KindListFailures lists failed runs, optionally scoped to a release
	KindListFailures Kind = "list_failures"
	// KindListStories lists mirrored JIRA stories
	KindListStories Kind = "list_stories"
	// KindRecentCases lists recently created cases
	KindRecentCases Kind = "recent_cases"
)

// Intent is the structured reading of a free-text query. The classifier
// is pure: it never touches storage, so module names stay names and the
// caller resolves them to IDs.
type Intent struct {
	Kind       Kind             `json:"kind"`
	Filter     types.CaseFilter `json:"filter"`
	ModuleName string           `json:"module_name,omitempty"`
	Release    string           `json:"release,omitempty"`

	// Confidence is 0.0-1.0; low values mean the query degraded to a
	// plain text search
	Confidence float64 `json:"confidence"`

	// Explanation lists the signals that were recognized, for display
	Explanation []string `json:"explanation,omitempty"`
}

// Classifier turns natural-language queries into intents using a table
// of compiled patterns
type Classifier struct {
	patterns *queryPatterns
}

// queryPatterns holds compiled regex patterns for query signals
type queryPatterns struct {
	// Intent selectors
	count    *regexp.Regexp
	failures *regexp.Regexp
	stories  *regexp.Regexp
	recent   *regexp.Regexp
	lastDays *regexp.Regexp

	// Filter signals
	automationCandidate *regexp.Regexp
	automated           *regexp.Regexp
	manual              *regexp.Regexp
	priorityP           *regexp.Regexp
	priorityWord        *regexp.Regexp
	module              *regexp.Regexp
	release             *regexp.Regexp
	quoted              *regexp.Regexp
	tagged              *regexp.Regexp
	hashTag             *regexp.Regexp

	// Filler words dropped from leftover text
	filler *regexp.Regexp
}

// NewClassifier creates a classifier with all patterns compiled
func NewClassifier() *Classifier {
	return &Classifier{patterns: compileQueryPatterns()}
}

func compileQueryPatterns() *queryPatterns {
	return &queryPatterns{
		count:    regexp.MustCompile(`(?i)\b(?:how many|count(?: of)?|number of)\b`),
		failures: regexp.MustCompile(`(?i)\b(?:fail(?:ed|ing|ures?)?|broken)\b`),
		stories:  regexp.MustCompile(`(?i)\b(?:stor(?:y|ies)|jira)\b`),
		recent:   regexp.MustCompile(`(?i)\b(?:recent(?:ly)?|latest|newest|new|today|this week)\b`),
		lastDays: regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d+)\s+days?\b`),

		automationCandidate: regexp.MustCompile(`(?i)\bautomation\s+candidates?\b`),
		automated:           regexp.MustCompile(`(?i)\bautomated\b`),
		manual:              regexp.MustCompile(`(?i)\bmanual\b`),
		priorityP:           regexp.MustCompile(`(?i)\bp([0-4])\b`),
		priorityWord:        regexp.MustCompile(`(?i)\b(critical|blocker|high|medium|low)(?:\s+priority)?\b`),
		module:              regexp.MustCompile(`(?i)\b(?:in|for|under)\s+(?:the\s+)?([\w-]+)\s+module\b`),
		release:             regexp.MustCompile(`(?i)\b(?:in\s+)?release\s+([\w.\-]+)\b`),
		quoted:              regexp.MustCompile(`"([^"]+)"`),
		tagged:              regexp.MustCompile(`(?i)\btag(?:ged)?(?:\s+with)?\s+([\w-]+)\b`),
		hashTag:             regexp.MustCompile(`#([\w-]+)`),

		filler: regexp.MustCompile(`(?i)\b(?:show|list|find|get|give|me|all|the|test\s*cases?|cases?|tests?|please|that|are|is|of|which|from|with|what)\b`),
	}
}

var priorityWords = map[string]int{
	"critical": 0,
	"blocker":  0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

// Classify reads a free-text query into an Intent. Unrecognized queries
// degrade to list_cases with the raw text as a text filter.
func (c *Classifier) Classify(query string) *Intent {
	q := strings.TrimSpace(query)
	intent := &Intent{Kind: KindListCases, Confidence: 0.2}
	if q == "" {
		return intent
	}

	p := c.patterns
	signals := 0
	remaining := q

	consume := func(re *regexp.Regexp) []string {
		m := re.FindStringSubmatch(remaining)
		if m == nil {
			return nil
		}
		remaining = strings.Replace(remaining, m[0], " ", 1)
		signals++
		return m
	}

	// Kind selectors, most specific first
	if m := consume(p.count); m != nil {
		intent.Kind = KindCountCases
		intent.Explanation = append(intent.Explanation, "counting matches")
	}
	if m := consume(p.stories); m != nil {
		intent.Kind = KindListStories
		intent.Explanation = append(intent.Explanation, "listing stories")
	}
	if m := consume(p.failures); m != nil {
		intent.Kind = KindListFailures
		intent.Explanation = append(intent.Explanation, "listing failed runs")
	}

	if m := consume(p.release); m != nil {
		intent.Release = m[1]
		intent.Explanation = append(intent.Explanation, "release "+m[1])
	}

	// Time window
	if m := consume(p.lastDays); m != nil {
		days, _ := strconv.Atoi(m[1])
		since := time.Now().AddDate(0, 0, -days)
		intent.Filter.Since = &since
		if intent.Kind == KindListCases {
			intent.Kind = KindRecentCases
		}
		intent.Explanation = append(intent.Explanation, "created in the last "+m[1]+" days")
	} else if m := consume(p.recent); m != nil {
		since := time.Now().AddDate(0, 0, -7)
		intent.Filter.Since = &since
		if intent.Kind == KindListCases {
			intent.Kind = KindRecentCases
		}
		intent.Explanation = append(intent.Explanation, "created in the last 7 days")
	}

	// Automation status; the candidate phrase must win over "automated"
	if m := consume(p.automationCandidate); m != nil {
		candidate := types.AutomationCandidate
		intent.Filter.Automation = &candidate
		intent.Explanation = append(intent.Explanation, "automation candidates")
	} else if m := consume(p.automated); m != nil {
		automated := types.AutomationAutomated
		intent.Filter.Automation = &automated
		intent.Explanation = append(intent.Explanation, "automated cases")
	} else if m := consume(p.manual); m != nil {
		manual := types.AutomationManual
		intent.Filter.Automation = &manual
		intent.Explanation = append(intent.Explanation, "manual cases")
	}

	// Priority
	if m := consume(p.priorityP); m != nil {
		priority, _ := strconv.Atoi(m[1])
		intent.Filter.Priority = &priority
		intent.Explanation = append(intent.Explanation, "priority "+m[1])
	} else if m := consume(p.priorityWord); m != nil {
		priority := priorityWords[strings.ToLower(m[1])]
		intent.Filter.Priority = &priority
		intent.Explanation = append(intent.Explanation, strings.ToLower(m[1])+" priority")
	}

	if m := consume(p.module); m != nil {
		intent.ModuleName = m[1]
		intent.Explanation = append(intent.Explanation, "module "+m[1])
	}

	// Tags, both spelled out and #shorthand
	if m := consume(p.tagged); m != nil {
		intent.Filter.Tags = append(intent.Filter.Tags, strings.ToLower(m[1]))
		intent.Explanation = append(intent.Explanation, "tagged "+strings.ToLower(m[1]))
	}
	for {
		m := consume(p.hashTag)
		if m == nil {
			break
		}
		intent.Filter.Tags = append(intent.Filter.Tags, strings.ToLower(m[1]))
		intent.Explanation = append(intent.Explanation, "tagged "+strings.ToLower(m[1]))
	}

	// Quoted phrase is an exact text match
	if m := consume(p.quoted); m != nil {
		intent.Filter.Text = m[1]
		intent.Explanation = append(intent.Explanation, "containing \""+m[1]+"\"")
	}

	// Whatever survives the patterns becomes a text filter
	if intent.Filter.Text == "" {
		leftover := p.filler.ReplaceAllString(remaining, " ")
		leftover = strings.Join(strings.Fields(leftover), " ")
		if leftover != "" {
			intent.Filter.Text = leftover
		}
	}

	if signals == 0 {
		// Nothing recognized: plain text search over the raw query
		intent.Filter.Text = q
		return intent
	}

	intent.Confidence = 0.4 + 0.15*float64(signals)
	if intent.Confidence > 0.95 {
		intent.Confidence = 0.95
	}
	return intent
}
