package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryGrouper maintains an ordered, append-only (plus one-shot
// upgrade) list of HistoryBlocks for the UI (C10). Grounded on the
// teacher's ConversationSession.AddMessage bounded-append pattern
// (pkg/orchestrator/types.go), generalized from "cap at N" to
// "append-only with in-place upgrade".
type HistoryGrouper struct {
	mu                     sync.Mutex
	blocks                 []*HistoryBlock
	bySentenceID           map[string]*HistoryBlock
	byParagraphID          map[string]*HistoryBlock
	allowRealtimeDowngrade bool
}

// NewHistoryGrouper builds an empty grouper.
func NewHistoryGrouper(allowRealtimeDowngrade bool) *HistoryGrouper {
	return &HistoryGrouper{
		bySentenceID:           make(map[string]*HistoryBlock),
		byParagraphID:          make(map[string]*HistoryBlock),
		allowRealtimeDowngrade: allowRealtimeDowngrade,
	}
}

// AddSentence appends a one-sentence block with a "translating…"
// placeholder target.
func (h *HistoryGrouper) AddSentence(cs CombinedSentence) *HistoryBlock {
	h.mu.Lock()
	defer h.mu.Unlock()

	block := &HistoryBlock{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Sentences: []HistorySentence{{
			ID:          cs.ID,
			SourceText:  cs.SourceText,
			TargetText:  HistoryPlaceholder,
			TimestampMs: cs.StartMs,
			tier:        tierPlaceholder,
		}},
	}
	h.blocks = append(h.blocks, block)
	h.bySentenceID[cs.ID] = block
	return block
}

// AddParagraph appends a paragraph-mode block with empty target text.
func (h *HistoryGrouper) AddParagraph(p Paragraph) *HistoryBlock {
	h.mu.Lock()
	defer h.mu.Unlock()

	block := &HistoryBlock{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		IsParagraph: true,
		ParagraphID: p.ID,
		tier:        tierEmpty,
		Sentences: []HistorySentence{{
			ID:          p.ID,
			SourceText:  p.CleanedText,
			TargetText:  "",
			TimestampMs: p.StartMs,
			tier:        tierEmpty,
		}},
	}
	h.blocks = append(h.blocks, block)
	h.byParagraphID[p.ID] = block
	return block
}

// upgradeAllowed applies the tier-ordinal rule from spec §8/§4.10: a
// translation can only be upgraded, never downgraded. paragraph-quality
// always wins; realtime only overwrites placeholder/timeout/empty
// unless AllowRealtimeDowngrade is set.
func upgradeAllowed(current, incoming translationTier, allowRealtimeDowngrade bool) bool {
	if incoming >= tierParagraph {
		return true
	}
	if current <= tierTimeout {
		return true
	}
	return allowRealtimeDowngrade
}

// UpdateSentenceTranslation applies a one-shot (tier-respecting) upgrade
// to the sentence with the given combined-sentence ID.
func (h *HistoryGrouper) UpdateSentenceTranslation(sentenceID, targetText string, kind RequestKind) bool {
	tier := tierRealtime
	if kind == KindParagraph {
		tier = tierParagraph
	}
	if targetText == TranslationTimeoutMarker {
		tier = tierTimeout
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	block, ok := h.bySentenceID[sentenceID]
	if !ok {
		return false
	}
	for i := range block.Sentences {
		if block.Sentences[i].ID != sentenceID {
			continue
		}
		if !upgradeAllowed(block.Sentences[i].tier, tier, h.allowRealtimeDowngrade) {
			return false
		}
		block.Sentences[i].TargetText = targetText
		block.Sentences[i].tier = tier
		return true
	}
	return false
}

// UpdateParagraphTranslation applies the same one-shot upgrade rule to a
// paragraph-level block.
func (h *HistoryGrouper) UpdateParagraphTranslation(paragraphID, targetText string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	block, ok := h.byParagraphID[paragraphID]
	if !ok {
		return false
	}
	if !upgradeAllowed(block.tier, tierParagraph, h.allowRealtimeDowngrade) {
		return false
	}
	block.tier = tierParagraph
	if len(block.Sentences) > 0 {
		block.Sentences[0].TargetText = targetText
		block.Sentences[0].tier = tierParagraph
	}
	return true
}

// PromoteToParagraph flips is_paragraph from false to true on the block
// containing sentenceID and attaches paragraphID, per spec §3's
// "a block's is_paragraph may flip from false to true" invariant.
func (h *HistoryGrouper) PromoteToParagraph(sentenceID, paragraphID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	block, ok := h.bySentenceID[sentenceID]
	if !ok {
		return false
	}
	block.IsParagraph = true
	block.ParagraphID = paragraphID
	h.byParagraphID[paragraphID] = block
	return true
}

// Snapshot returns a copy of the ordered blocks, optionally limited/
// offset for pagination (spec §6 getHistory{limit?, offset?}).
func (h *HistoryGrouper) Snapshot(limit, offset int) []HistoryBlock {
	h.mu.Lock()
	defer h.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset > len(h.blocks) {
		offset = len(h.blocks)
	}
	end := len(h.blocks)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]HistoryBlock, 0, end-offset)
	for _, b := range h.blocks[offset:end] {
		out = append(out, *b)
	}
	return out
}

// Clear removes all blocks (spec §6 clearHistory{}).
func (h *HistoryGrouper) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = nil
	h.bySentenceID = make(map[string]*HistoryBlock)
	h.byParagraphID = make(map[string]*HistoryBlock)
}
