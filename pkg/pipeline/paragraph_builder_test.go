package pipeline

import "testing"

func newTestParagraphConfig() Config {
	cfg := DefaultConfig()
	cfg.Paragraph.MinMs = 100
	cfg.Paragraph.TargetMinMs = 200
	cfg.Paragraph.TargetMaxMs = 2000
	cfg.Paragraph.HardCapMs = 5000
	cfg.Paragraph.SilenceGapMs = 50
	return cfg
}

func TestParagraphBuilderFlushDiscardsBelowMinimum(t *testing.T) {
	var got []Paragraph
	pb := NewParagraphBuilder(newTestParagraphConfig(), func(p Paragraph) {
		got = append(got, p)
	})

	pb.AddSentence(CombinedSentence{ID: "s1", SourceText: "short", StartMs: 0, EndMs: 10, WordCount: 1})
	pb.Flush()

	if len(got) != 0 {
		t.Fatalf("expected undersized partial paragraph discarded, got %d emitted", len(got))
	}
}

func TestParagraphBuilderAccumulatesSentenceIDs(t *testing.T) {
	var got []Paragraph
	pb := NewParagraphBuilder(newTestParagraphConfig(), func(p Paragraph) {
		got = append(got, p)
	})

	pb.AddSentence(CombinedSentence{ID: "s1", SourceText: "First sentence.", StartMs: 0, EndMs: 100, WordCount: 2})
	pb.AddSentence(CombinedSentence{ID: "s2", SourceText: "Second sentence.", StartMs: 100, EndMs: 200, WordCount: 2})

	if len(pb.sentences) != 2 {
		t.Fatalf("expected 2 pending sentences before flush, got %d", len(pb.sentences))
	}
}

func TestCleanParagraphTextCollapsesDoubledPunctuation(t *testing.T) {
	cases := map[string]string{
		"Hello.. world":   "Hello. world",
		"Wait , really?": "Wait, really?",
		"No!! Way??":      "No! Way?",
	}
	for in, want := range cases {
		if got := cleanParagraphText(in); got != want {
			t.Errorf("cleanParagraphText(%q) = %q, want %q", in, got, want)
		}
	}
}
