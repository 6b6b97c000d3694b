package json

import "testing"

func TestExtractJSONPureObject(t *testing.T) {
	input := `{"name": "test", "value": 42}`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != input {
		t.Errorf("expected %q, got %q", input, got)
	}
}

func TestExtractJSONPureArray(t *testing.T) {
	input := `[{"title": "Paper A"}, {"title": "Paper B"}]`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != input {
		t.Errorf("expected %q, got %q", input, got)
	}
}

func TestExtractJSONFromMarkdownBlock(t *testing.T) {
	input := "```json\n{\"key\": \"value\"}\n```"
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"key": "value"}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONEmbeddedInText(t *testing.T) {
	input := `Here are the results: {"count": 3} as requested.`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"count": 3}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONArrayEmbeddedInText(t *testing.T) {
	input := `Found papers: [{"title": "A"}] (2 omitted)`
	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `[{"title": "A"}]` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNoJSON(t *testing.T) {
	if _, err := ExtractJSON("no json here at all"); err == nil {
		t.Error("expected error for text without JSON")
	}
}

func TestExtractJSONFromResponseTyped(t *testing.T) {
	type record struct {
		Title string `json:"title"`
	}
	got, err := ExtractJSONFromResponse[[]record](`[{"title": "Attention Is All You Need"}]`)
	if err != nil {
		t.Fatalf("ExtractJSONFromResponse failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Attention Is All You Need" {
		t.Errorf("unexpected result: %+v", got)
	}
}
