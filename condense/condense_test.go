package condense

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/richinex/lectern/internal/tokens"
)

const markdownTwoEntries = `Found 2 papers matching your query:

1. **Language Models are Few-Shot Learners**
   Authors: Brown, T., Mann, B., Ryder, N.
   Year: 2020
   Citations: 15000
   URL: https://example.org/papers/gpt3
   Abstract: We demonstrate that scaling up language models greatly improves task-agnostic, few-shot performance, sometimes even reaching competitiveness with prior state-of-the-art fine-tuning approaches across many benchmarks and tasks we evaluate on.

2. **Attention Is All You Need**
   Authors: Vaswani, A., Shazeer, N.
   Year: 2017
   Citations: 90000
   URL: https://example.org/papers/transformer
   Abstract: We propose a new simple network architecture, the Transformer, based solely on attention mechanisms, dispensing with recurrence and convolutions entirely, and show it to be superior in quality while being more parallelizable.`

func TestCondenseUnknownToolPassthrough(t *testing.T) {
	input := "raw details text for a single paper"
	if got := Condense("get_paper_details", input); got != input {
		t.Errorf("unknown tool output must pass through unchanged, got %q", got)
	}
}

func TestCondenseErrorTextPassthrough(t *testing.T) {
	input := "Error searching for papers. The search service may be temporarily unavailable. Please try searching manually."
	if got := Condense(SearchToolName, input); got != input {
		t.Errorf("error text must pass through unchanged, got %q", got)
	}
}

func TestCondenseShortTextPassthrough(t *testing.T) {
	input := "No results."
	if got := Condense(SearchToolName, input); got != input {
		t.Errorf("short text must pass through unchanged, got %q", got)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	abstract := "x" + strings.Repeat("é", 300)
	got := truncate(abstract, abstractBudget)
	if !utf8.ValidString(got) {
		t.Errorf("truncated abstract is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix: %q", got)
	}
}

func TestCondenseMarkdownKeepsBothTitles(t *testing.T) {
	got := Condense(SearchToolName, markdownTwoEntries)
	if !strings.Contains(got, "Language Models are Few-Shot Learners") {
		t.Error("first title missing from condensed output")
	}
	if !strings.Contains(got, "Attention Is All You Need") {
		t.Error("second title missing from condensed output")
	}
	if tokens.Estimate(got) >= tokens.Estimate(markdownTwoEntries) {
		t.Errorf("condensed output (%d tokens) not smaller than input (%d tokens)",
			tokens.Estimate(got), tokens.Estimate(markdownTwoEntries))
	}
}

func TestCondenseJSONArray(t *testing.T) {
	input := `[{"title": "Paper One", "authors": [{"name": "Smith, J."}], "year": 2021, "citationCount": 42, "url": "https://example.org/1", "abstract": "` + strings.Repeat("Findings. ", 20) + `"},
{"title": "Paper Two", "authors": "Jones, K.", "year": "2022", "abstract": "Short abstract."}]`
	got := Condense(SearchToolName, input)
	if !strings.Contains(got, "Paper One") || !strings.Contains(got, "Paper Two") {
		t.Errorf("titles missing from condensed JSON output: %q", got)
	}
	if !strings.Contains(got, "Smith, J.") {
		t.Errorf("author objects not flattened: %q", got)
	}
	if !strings.Contains(got, "(2021)") {
		t.Errorf("numeric year not rendered: %q", got)
	}
}

func TestCondenseJSONDataWrapper(t *testing.T) {
	input := `{"data": [{"title": "Wrapped Paper", "year": 2019, "abstract": "` + strings.Repeat("word ", 30) + `"}]}`
	got := Condense(SearchToolName, input)
	if !strings.Contains(got, "Wrapped Paper") {
		t.Errorf("data-wrapped records not parsed: %q", got)
	}
}

func TestCondenseCapsRecordCount(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&sb, "Title: Paper Number %d\nYear: 2020\nAbstract: something about topic %d\n\n", i, i)
	}
	got := Condense(SearchToolName, sb.String())
	if !strings.Contains(got, "3 more results omitted") {
		t.Errorf("expected omission note for records beyond the cap, got %q", got)
	}
	if strings.Contains(got, "Paper Number 6") {
		t.Errorf("records beyond the cap should be dropped: %q", got)
	}
}

func TestCondenseTruncatesLongAbstracts(t *testing.T) {
	long := strings.Repeat("sentence ", 100)
	input := "Title: Big Abstract Paper\nYear: 2020\nAbstract: " + long + "\nURL: https://example.org/big"
	got := Condense(SearchToolName, input)
	if len(got) >= len(input) {
		t.Error("expected abstract truncation to shrink output")
	}
	if !strings.Contains(got, "...") {
		t.Errorf("expected truncation ellipsis, got %q", got)
	}
}

func TestCondenseNoRecordsPassthrough(t *testing.T) {
	input := strings.Repeat("plain prose with no recognizable paper fields whatsoever. ", 3)
	if got := Condense(SearchToolName, input); got != input {
		t.Errorf("unextractable text must pass through unchanged, got %q", got)
	}
}

func TestPruneLinesKeepsImportantFields(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Title: The Important Paper\n")
	sb.WriteString("URL: https://example.org/important\n")
	for i := 0; i < 400; i++ {
		sb.WriteString("filler prose line that carries no metadata at all\n")
	}
	got := pruneLines(sb.String(), 200)

	if !strings.Contains(got, "The Important Paper") {
		t.Error("important title line dropped by pruner")
	}
	if !strings.Contains(got, "https://example.org/important") {
		t.Error("important URL line dropped by pruner")
	}
	if !strings.Contains(got, truncationMarker) {
		t.Error("expected truncation marker when lines are dropped")
	}
	if tokens.Estimate(got) > 250 {
		t.Errorf("pruned output still too large: %d tokens", tokens.Estimate(got))
	}
}

func TestPruneLinesNoopUnderBudget(t *testing.T) {
	input := "Title: Small\nAbstract: tiny"
	got := pruneLines(input, 1000)
	if got != input {
		t.Errorf("expected no pruning under budget, got %q", got)
	}
}
