package memory

import (
	"context"
	"testing"
)

func extractAll(t *testing.T, prompt string) []CandidateStatement {
	t.Helper()
	cands, err := HeuristicExtractor{}.Extract(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Extract(%q): %v", prompt, err)
	}
	return cands
}

func findStatement(cands []CandidateStatement, statement string) (CandidateStatement, bool) {
	for _, c := range cands {
		if c.Statement == statement {
			return c, true
		}
	}
	return CandidateStatement{}, false
}

func TestHeuristicExtractor_LikeBecomesEnjoys(t *testing.T) {
	cands := extractAll(t, "I love hiking on weekends")
	c, ok := findStatement(cands, "User enjoys hiking on weekends")
	if !ok {
		t.Fatalf("expected enjoys statement, got %+v", cands)
	}
	if c.Type != TypeHobby {
		t.Fatalf("gerund activity should classify as hobby, got %q", c.Type)
	}
	if len(c.Tags) == 0 {
		t.Fatalf("expected topic tags")
	}
}

func TestHeuristicExtractor_DislikeAndPrefer(t *testing.T) {
	cands := extractAll(t, "I hate mushrooms on pizza. I prefer tea over coffee")
	if _, ok := findStatement(cands, "User dislikes mushrooms on pizza"); !ok {
		t.Fatalf("expected dislike statement, got %+v", cands)
	}
	c, ok := findStatement(cands, "User prefers tea over coffee")
	if !ok || c.Type != TypePreference {
		t.Fatalf("expected preference statement, got %+v", cands)
	}
}

func TestHeuristicExtractor_TraitGoalBelief(t *testing.T) {
	cands := extractAll(t, "I am a backend engineer. I want to learn Italian. I believe that small tools win")
	if c, ok := findStatement(cands, "User is backend engineer"); !ok || c.Type != TypeTrait {
		t.Fatalf("expected trait, got %+v", cands)
	}
	if c, ok := findStatement(cands, "User wants to learn Italian"); !ok || c.Type != TypeGoal {
		t.Fatalf("expected goal, got %+v", cands)
	}
	if c, ok := findStatement(cands, "User believes small tools win"); !ok || c.Type != TypeBelief {
		t.Fatalf("expected belief, got %+v", cands)
	}
}

func TestHeuristicExtractor_QuestionsYieldNothing(t *testing.T) {
	if cands := extractAll(t, "What is the capital of France?"); len(cands) != 0 {
		t.Fatalf("questions must not produce memories, got %+v", cands)
	}
	if cands := extractAll(t, ""); len(cands) != 0 {
		t.Fatalf("empty prompt must produce nothing")
	}
}

func TestHeuristicExtractor_DedupesStatements(t *testing.T) {
	cands := extractAll(t, "I like jazz. I really love jazz")
	count := 0
	for _, c := range cands {
		if c.Statement == "User enjoys jazz" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate statements must collapse, got %d in %+v", count, cands)
	}
}

func TestDecodeStatements(t *testing.T) {
	valid := `[{"type":"preference","statement":"User enjoys jazz","tags":["music"]}]`
	out := decodeStatements(valid)
	if len(out) != 1 || out[0].Statement != "User enjoys jazz" {
		t.Fatalf("valid JSON: %+v", out)
	}

	fenced := "```json\n" + valid + "\n```"
	if out := decodeStatements(fenced); len(out) != 1 {
		t.Fatalf("fenced JSON: %+v", out)
	}

	// Trailing comma needs the repair pass.
	broken := `[{"type":"preference","statement":"User enjoys jazz",}]`
	if out := decodeStatements(broken); len(out) != 1 {
		t.Fatalf("repairable JSON: %+v", out)
	}

	if out := decodeStatements("not json at all {{{"); len(out) != 0 {
		t.Fatalf("unrepairable input must yield nothing, got %+v", out)
	}
}

func TestDecodeStatementsDropsMalformedElements(t *testing.T) {
	mixed := `[
		{"type":"preference","statement":"User enjoys jazz"},
		{"type":"mood","statement":"User is cheerful"},
		{"type":"trait","statement":"   "}
	]`
	out := decodeStatements(mixed)
	if len(out) != 1 || out[0].Type != TypePreference {
		t.Fatalf("malformed elements must be dropped: %+v", out)
	}
}

func TestValidateCandidate(t *testing.T) {
	good := CandidateStatement{Type: TypeTrait, Statement: "User is punctual"}
	if err := validateCandidate(good); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}
	if err := validateCandidate(CandidateStatement{Type: "mood", Statement: "x"}); err == nil {
		t.Fatalf("unknown type must be rejected")
	}
	if err := validateCandidate(CandidateStatement{Type: TypeTrait, Statement: "  "}); err == nil {
		t.Fatalf("blank statement must be rejected")
	}
}
