package ops

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/xmlstore"
)

// NodeTextInput contains parameters for the NodeText operation.
type NodeTextInput struct {
	Path   string `json:"path"`
	NodeID *int64 `json:"node_id"` // 0 is a valid ID
	Start  int    `json:"start,omitempty"`
	End    *int   `json:"end,omitempty"` // nil = end of the node
	Markup bool   `json:"markup,omitempty"`
}

// Validate implements validation.Validatable.
func (in NodeTextInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required),
		validation.Field(&in.NodeID, validation.NotNil),
		validation.Field(&in.Start, validation.Min(0)),
	)
}

// NodeTextOutput contains the content of one node.
type NodeTextOutput struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Syntax  string          `json:"syntax"`
	Text    string          `json:"text"`
	Chars   int             `json:"chars"`
	Widgets []WidgetSummary `json:"widgets"`
	Markup  string          `json:"markup,omitempty"`
}

// NodeText materializes one node and returns the plain text of [start, end),
// the widgets anchored there and, when asked, the range as a markup fragment.
func NodeText(ctx context.Context, cfg *config.Config, input NodeTextInput) (*NodeTextOutput, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	doc, err := LoadDocument(ctx, cfg, input.Path)
	if err != nil {
		return nil, err
	}
	n, err := doc.Node(*input.NodeID)
	if err != nil {
		return nil, err
	}

	buf, err := n.TextBuffer()
	if err != nil {
		return nil, err
	}
	end := endOffset(input.End)
	widgets, err := n.AnchoredWidgets(input.Start, end)
	if err != nil {
		return nil, err
	}

	out := &NodeTextOutput{
		ID:      n.ID,
		Name:    n.Name,
		Path:    NodePath(n),
		Syntax:  n.Syntax,
		Text:    buf.Text(input.Start, end),
		Chars:   buf.CharCount(),
		Widgets: make([]WidgetSummary, 0, len(widgets)),
	}
	for _, w := range widgets {
		out.Widgets = append(out.Widgets, summarizeWidget(w))
	}
	if input.Markup {
		data, err := xmlstore.FragmentXML(buf, widgets, input.Start, end, xmlstore.CaseNone)
		if err != nil {
			return nil, err
		}
		out.Markup = string(data)
	}
	return out, nil
}
