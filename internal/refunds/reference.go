package refunds

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

// DefaultReferenceTemplate renders "Refund #<yymm sequence>", e.g. Refund #0007.
const DefaultReferenceTemplate = `Refund #{{seq (printf "refund:%s" (date "0601" .DateCreated)) 4}}`

// Sequencer hands out monotonically increasing numbers per counter name.
type Sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// ReferenceGenerator renders refund references from a text/template. The
// template sees the refund and its computation, plus two functions:
//
//	seq NAME PAD   next value of counter NAME, zero padded to PAD digits
//	date LAYOUT T  T formatted with the Go time LAYOUT
type ReferenceGenerator struct {
	tmpl *template.Template
	seq  Sequencer
}

// ReferenceView is the data a reference template is executed against.
type ReferenceView struct {
	*Refund
	Computation
}

// NewReferenceGenerator parses text, falling back to DefaultReferenceTemplate
// when it is blank.
func NewReferenceGenerator(text string, seq Sequencer) (*ReferenceGenerator, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultReferenceTemplate
	}
	if seq == nil {
		return nil, fmt.Errorf("reference sequencer required")
	}
	tmpl, err := template.New("reference").Option("missingkey=error").Funcs(referenceFuncs(nil, nil)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse reference template: %w", err)
	}
	return &ReferenceGenerator{tmpl: tmpl, seq: seq}, nil
}

// Generate renders a reference for ref. The template is cloned per call so
// seq can observe ctx.
func (g *ReferenceGenerator) Generate(ctx context.Context, ref *Refund, comp Computation) (string, error) {
	tmpl, err := g.tmpl.Clone()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clone reference template")
	}
	tmpl.Funcs(referenceFuncs(ctx, g.seq))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ReferenceView{Refund: ref, Computation: comp}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render refund reference")
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "reference template rendered an empty string")
	}
	return out, nil
}

func referenceFuncs(ctx context.Context, seq Sequencer) template.FuncMap {
	return template.FuncMap{
		"seq": func(name string, pad int) (string, error) {
			if seq == nil {
				return "", fmt.Errorf("no sequencer bound")
			}
			n, err := seq.NextSequence(ctx, name)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%0*d", pad, n), nil
		},
		"date": func(layout string, t time.Time) string {
			return t.Format(layout)
		},
	}
}
