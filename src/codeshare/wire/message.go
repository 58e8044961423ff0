// Package wire defines the JSON message vocabulary exchanged between the
// broadcast engine and connected viewers. Messages are plain JSON text
// frames; every message is self-describing via its "type" field so a viewer
// can dispatch on that field alone. Unknown types must be ignored by both
// sides, never treated as an error, since the protocol has evolved in place.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/codeshare/codeshare/src/codeshare/entity"
)

// Kind discriminates the message envelope.
type Kind string

const (
	// KindOpen announces a newly opened (or saved) document with its full content.
	KindOpen Kind = "open"
	// KindPatch carries a debounced content update with a character diff.
	KindPatch Kind = "patch"
	// KindContent is the legacy name for KindPatch. Emitted by older
	// integrations; readers treat it exactly like KindPatch.
	KindContent Kind = "content"
	// KindSelection carries a cursor/selection change.
	KindSelection Kind = "selection"
	// KindClose announces that a document is no longer tracked.
	KindClose Kind = "close"
	// KindRequestSync is sent by a viewer that wants a full replay of all
	// open documents. It carries no payload.
	KindRequestSync Kind = "request_sync"
)

// IsUpdate reports whether the kind carries replacement document content.
func (k Kind) IsUpdate() bool {
	return k == KindPatch || k == KindContent
}

// Diff is one character-level edit operation attached to a patch message.
// The diff is advisory: patches always also carry the full content, so a
// viewer may ignore diffs and re-render wholesale.
type Diff struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// Diff op values.
const (
	DiffAdded     = "added"
	DiffRemoved   = "removed"
	DiffUnchanged = "unchanged"
)

// Open is the engine-to-viewer message for a document open or save.
type Open struct {
	Type     Kind              `json:"type"`
	Filename entity.DocumentID `json:"filename"`
	Content  string            `json:"content"`
	Language string            `json:"language"`
}

// Patch is the engine-to-viewer message for a debounced content update.
type Patch struct {
	Type     Kind              `json:"type"`
	Filename entity.DocumentID `json:"filename"`
	Content  string            `json:"content"`
	Language string            `json:"language"`
	Diffs    []Diff            `json:"diffs,omitempty"`
}

// Selection is the engine-to-viewer message for a cursor move. Both the
// raw range and the derived line/text fields are included so viewers of
// either protocol iteration can render it.
type Selection struct {
	Type          Kind              `json:"type"`
	Filename      entity.DocumentID `json:"filename"`
	Selection     entity.Selection  `json:"selection"`
	SelectedLines []int             `json:"selectedLines,omitempty"`
	SelectedText  string            `json:"selectedText,omitempty"`
}

// Close is the engine-to-viewer message for a document close.
type Close struct {
	Type     Kind              `json:"type"`
	Filename entity.DocumentID `json:"filename"`
}

// NewOpen builds an open message for the given document.
func NewOpen(doc entity.Document) Open {
	return Open{
		Type:     KindOpen,
		Filename: doc.ID,
		Content:  doc.Content,
		Language: doc.Language,
	}
}

// NewPatch builds a patch message for the given document and diff script.
func NewPatch(doc entity.Document, diffs []Diff) Patch {
	return Patch{
		Type:     KindPatch,
		Filename: doc.ID,
		Content:  doc.Content,
		Language: doc.Language,
		Diffs:    diffs,
	}
}

// NewSelection builds a selection message. The selected text is derived
// from content, which should be the engine's current view of the document.
func NewSelection(id entity.DocumentID, sel entity.Selection, content string) Selection {
	return Selection{
		Type:          KindSelection,
		Filename:      id,
		Selection:     sel,
		SelectedLines: sel.Lines(),
		SelectedText:  sel.TextIn(content),
	}
}

// NewClose builds a close message for the given document identifier.
func NewClose(id entity.DocumentID) Close {
	return Close{Type: KindClose, Filename: id}
}

// Envelope is the superset shape used when reading inbound frames. Only
// Type is guaranteed to be present; remaining fields are populated when the
// sender included them.
type Envelope struct {
	Type          Kind              `json:"type"`
	Filename      entity.DocumentID `json:"filename,omitempty"`
	Content       string            `json:"content,omitempty"`
	Language      string            `json:"language,omitempty"`
	Diffs         []Diff            `json:"diffs,omitempty"`
	Selection     *entity.Selection `json:"selection,omitempty"`
	SelectedLines []int             `json:"selectedLines,omitempty"`
	SelectedText  string            `json:"selectedText,omitempty"`
}

// Encode serializes a message to its wire form.
func Encode(msg interface{}) (string, error) {
	out, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	return string(out), nil
}

// Decode parses an inbound frame. Frames with an unrecognized type decode
// successfully; callers dispatch on Type and skip kinds they do not handle.
// Malformed JSON returns an error and must be dropped by the caller.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding message: %w", err)
	}
	return env, nil
}
