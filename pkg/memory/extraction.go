package memory

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Extractor turns a raw user prompt into candidate memory statements. A nil
// or failing extractor yields an empty batch; the prompt itself is still
// persisted by the caller.
type Extractor interface {
	Extract(ctx context.Context, prompt string) ([]CandidateStatement, error)
}

var (
	likeRegex    = regexp.MustCompile(`(?i)\bi (?:really )?(?:like|love|enjoy)\s+([^.!?,\n]{2,120})`)
	dislikeRegex = regexp.MustCompile(`(?i)\bi (?:really )?(?:hate|dislike|can't stand|cannot stand)\s+([^.!?,\n]{2,120})`)
	preferRegex  = regexp.MustCompile(`(?i)\bi prefer\s+([^.!?\n]{2,120})`)
	traitRegex   = regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(?:an?\s+)?([^.!?,\n]{2,120})`)
	goalRegex    = regexp.MustCompile(`(?i)\b(?:i want to|i plan to|i'm planning to|my goal is to)\s+([^.!?\n]{2,120})`)
	beliefRegex  = regexp.MustCompile(`(?i)\bi (?:believe|think) that\s+([^.!?\n]{2,160})`)

	activityRegex   = regexp.MustCompile(`(?i)^\w+ing\b`)
	questionRegex   = regexp.MustCompile(`(?i)^\s*(?:what|why|how|when|where|who|can|could|would|do|does|did|is|are)\b`)
	tagSplitRegex   = regexp.MustCompile(`[^a-z0-9]+`)
	stopwordsForTag = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
		"in": {}, "on": {}, "with": {}, "for": {}, "my": {}, "at": {},
	}
)

// HeuristicExtractor derives statements from first-person cues without any
// model call. It is the default extractor and the fallback when the LLM
// extractor is not configured.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(_ context.Context, prompt string) ([]CandidateStatement, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil
	}
	if questionRegex.MatchString(prompt) && !strings.Contains(strings.ToLower(prompt), "remember") {
		return nil, nil
	}

	out := []CandidateStatement{}
	seen := map[string]struct{}{}
	add := func(cand CandidateStatement) {
		key := normalizeText(cand.Statement)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}

	for _, m := range likeRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" {
			continue
		}
		kind := TypePreference
		if activityRegex.MatchString(obj) {
			kind = TypeHobby
		}
		add(CandidateStatement{Type: kind, Statement: "User enjoys " + obj, Tags: topicTags(obj)})
	}
	for _, m := range dislikeRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" {
			continue
		}
		add(CandidateStatement{Type: TypeDislike, Statement: "User dislikes " + obj, Tags: topicTags(obj)})
	}
	for _, m := range preferRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" {
			continue
		}
		add(CandidateStatement{Type: TypePreference, Statement: "User prefers " + obj, Tags: topicTags(obj)})
	}
	for _, m := range traitRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" || activityRegex.MatchString(obj) {
			continue
		}
		add(CandidateStatement{Type: TypeTrait, Statement: "User is " + obj, Tags: topicTags(obj)})
	}
	for _, m := range goalRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" {
			continue
		}
		add(CandidateStatement{Type: TypeGoal, Statement: "User wants to " + obj, Tags: topicTags(obj)})
	}
	for _, m := range beliefRegex.FindAllStringSubmatch(prompt, -1) {
		obj := trimPhrase(m[1])
		if obj == "" {
			continue
		}
		add(CandidateStatement{Type: TypeBelief, Statement: "User believes " + obj, Tags: topicTags(obj)})
	}

	if len(out) > 8 {
		out = out[:8]
	}
	return out, nil
}

func trimPhrase(in string) string {
	in = strings.TrimSpace(in)
	in = strings.Trim(in, " .,!?:;\"'")
	if len(in) < 2 {
		return ""
	}
	if len(in) > 120 {
		in = strings.TrimSpace(in[:120])
	}
	return in
}

// topicTags picks up to three content words from a phrase.
func topicTags(phrase string) []string {
	words := tagSplitRegex.Split(strings.ToLower(phrase), -1)
	tags := make([]string, 0, 3)
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwordsForTag[w]; stop {
			continue
		}
		tags = append(tags, w)
		if len(tags) == 3 {
			break
		}
	}
	return tags
}

// validateCandidate rejects draft statements the engine cannot use.
func validateCandidate(cand CandidateStatement) error {
	if strings.TrimSpace(cand.Statement) == "" || !ValidType(cand.Type) {
		return ErrMalformedCandidate
	}
	return nil
}

// decodeStatements parses extractor output that is supposed to be a JSON
// array of candidates. Fenced or mildly broken JSON is repaired before a
// second parse attempt; malformed elements are dropped, not fatal.
func decodeStatements(raw string) []CandidateStatement {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var cands []CandidateStatement
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(repaired), &cands); err != nil {
			return nil
		}
	}

	out := cands[:0]
	for _, cand := range cands {
		cand.Statement = strings.TrimSpace(cand.Statement)
		if cand.Statement == "" || !ValidType(cand.Type) {
			continue
		}
		out = append(out, cand)
	}
	return out
}
