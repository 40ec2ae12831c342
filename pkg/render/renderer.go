package render

import (
	"github.com/lunarc/sash/pkg/conversation"
	"github.com/lunarc/sash/pkg/window"
)

// Budget configures the token bounds for one render call. It is passed per
// call and not owned by any entity.
type Budget struct {
	// MaxTokens caps the estimated size of the rendered document.
	MaxTokens int
	// MinConversationTokens is the floor of retained conversation. Trimming
	// stops at the floor even if the overall budget is still exceeded.
	MinConversationTokens int
	// TrimToTokens is the target trimming shrinks the document to. A value
	// of zero or less means MaxTokens/2.
	TrimToTokens int
}

// TrimTarget returns the effective trim target.
func (b Budget) TrimTarget() int {
	if b.TrimToTokens > 0 {
		return b.TrimToTokens
	}
	return b.MaxTokens / 2
}

// Document is the serialized result of one render call.
type Document struct {
	// Text is the flattened indentation-based layout of the full tree.
	Text string
	// Markup is the nested markup serialization of the full tree.
	Markup string
	// System is the windows portion alone, for use as system context.
	System string
	// Items is the conversation that survived trimming, in order.
	Items []conversation.Item
	// EstimatedTokens is the deterministic estimate for Text.
	EstimatedTokens int
	// DroppedItems counts conversation items removed by trimming.
	DroppedItems int
}

// Renderer composes windows and a conversation snapshot into a budgeted
// document. Rendering never mutates the underlying conversation store; it
// operates on the snapshot it is given.
type Renderer struct {
	Indent    string
	Separator string
}

// New returns a renderer with the default layout settings.
func New() *Renderer {
	return &Renderer{Indent: "  ", Separator: "\n"}
}

// Render builds the document and applies the trimming policy: if the
// estimate exceeds MaxTokens, the oldest conversation items are dropped
// until the estimate reaches the trim target or the conversation floor
// would be breached. Window content is never trimmed, so the budget can be
// knowingly exceeded when the floor wins.
func (r *Renderer) Render(windows []window.Window, items []conversation.Item, b Budget) Document {
	kept := make([]conversation.Item, len(items))
	copy(kept, items)

	doc := r.build(windows, kept)
	dropped := 0

	if b.MaxTokens > 0 && doc.EstimatedTokens > b.MaxTokens {
		target := b.TrimTarget()
		for doc.EstimatedTokens > target && len(kept) > 0 {
			if conversation.EstimateTokens(kept[1:]) < b.MinConversationTokens {
				break
			}
			kept = kept[1:]
			dropped++
			doc = r.build(windows, kept)
		}
	}

	doc.DroppedItems = dropped
	return doc
}

func (r *Renderer) build(windows []window.Window, items []conversation.Item) Document {
	windowsNode := Container("windows")
	for _, w := range windows {
		windowsNode.Add(r.windowNode(w))
	}

	convNode := Container("conversation")
	for _, it := range items {
		convNode.Add(Leaf("message", it.Content, Attr{Key: "role", Value: string(it.Role)}))
	}

	root := Container("context").Add(windowsNode, convNode)
	text := root.RenderText(r.Indent, r.Separator)

	return Document{
		Text:            text,
		Markup:          root.RenderMarkup(),
		System:          windowsNode.RenderText(r.Indent, r.Separator),
		Items:           items,
		EstimatedTokens: conversation.EstimateText(text),
	}
}

func (r *Renderer) windowNode(w window.Window) *Node {
	wn := Container("window",
		Attr{Key: "id", Value: w.ID},
		Attr{Key: "app", Value: w.App},
	)
	if w.Description != "" {
		wn.Add(Leaf("description", w.Description))
	}
	if w.Content != "" {
		wn.Add(Leaf("content", w.Content))
	}
	if len(w.Actions) > 0 {
		actions := Container("actions")
		for _, a := range w.Actions {
			label := a.Title
			if a.Description != "" {
				label += " - " + a.Description
			}
			actions.Add(Leaf("action", label, Attr{Key: "id", Value: a.ID}))
		}
		wn.Add(actions)
	}
	return wn
}
