// Package render produces the default human-readable content written into
// a catalog entity the first time it is created.
package render

import (
	"fmt"
	"strings"

	md "github.com/nao1215/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/catalogsync/pkg/catalogs"
)

// Defaults is the user-owned content seeded on creation.
type Defaults struct {
	Markdown string           `json:"markdown" yaml:"markdown"`
	Badges   []catalogs.Badge `json:"badges,omitempty" yaml:"badges,omitempty"`
	Summary  string           `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Fields returns the defaults keyed by their frontmatter names, omitting
// empty values.
func (d Defaults) Fields() catalogs.Fields {
	out := catalogs.Fields{}
	if d.Markdown != "" {
		out[catalogs.FieldMarkdown] = d.Markdown
	}
	if len(d.Badges) > 0 {
		out[catalogs.FieldBadges] = append([]catalogs.Badge(nil), d.Badges...)
	}
	if d.Summary != "" {
		out[catalogs.FieldSummary] = d.Summary
	}
	return out
}

// Renderer computes Defaults for a revision. Implementations must be pure.
type Renderer interface {
	Render(rev *catalogs.Revision) Defaults
}

// Func adapts a function to Renderer.
type Func func(rev *catalogs.Revision) Defaults

// Render calls f(rev).
func (f Func) Render(rev *catalogs.Revision) Defaults { return f(rev) }

// kindColors maps an entity label to its badge color.
var kindColors = map[string]string{
	"domain":  "purple",
	"service": "pink",
	"channel": "gray",
	"event":   "orange",
	"command": "blue",
	"query":   "green",
}

type defaultRenderer struct {
	title cases.Caser
}

// New returns the default renderer.
func New() Renderer {
	return &defaultRenderer{title: cases.Title(language.English)}
}

func (r *defaultRenderer) Render(rev *catalogs.Revision) Defaults {
	return Defaults{
		Markdown: r.markdown(rev),
		Badges:   r.badges(rev),
		Summary:  r.summary(rev),
	}
}

func (r *defaultRenderer) label(rev *catalogs.Revision) string {
	if rev.Kind == catalogs.KindMessage && rev.MessageType != "" {
		return string(rev.MessageType)
	}
	return string(rev.Kind)
}

func (r *defaultRenderer) name(rev *catalogs.Revision) string {
	if name := rev.SourceFields.String(catalogs.FieldName); name != "" {
		return name
	}
	return rev.ID
}

func (r *defaultRenderer) markdown(rev *catalogs.Revision) string {
	var sb strings.Builder
	doc := md.NewMarkdown(&sb)

	if desc := rev.SourceFields.String(catalogs.FieldDescription); desc != "" {
		doc.PlainText(desc).LF()
	}

	switch rev.Kind {
	case catalogs.KindDomain:
		doc.H2("Bounded context").PlainText("<NodeGraph />")
	case catalogs.KindService:
		doc.H2("Architecture diagram").PlainText("<NodeGraph />")
		if specs := specNames(rev.SourceFields); len(specs) > 0 {
			doc.LF().H2("Specifications").BulletList(specs...)
		}
	case catalogs.KindChannel:
		doc.H2("Channel information").PlainText("<ChannelInformation />")
	case catalogs.KindMessage:
		doc.H2("Architecture diagram").PlainText("<NodeGraph />")
		if path := rev.SourceFields.String(catalogs.FieldSchemaPath); path != "" {
			doc.LF().H2(r.title.String(r.label(rev)) + " schema").
				PlainText(fmt.Sprintf(`<Schema file="%s" />`, path))
		}
	}

	if err := doc.Build(); err != nil {
		return ""
	}
	return sb.String()
}

func (r *defaultRenderer) badges(rev *catalogs.Revision) []catalogs.Badge {
	label := r.label(rev)
	color := kindColors[label]
	badges := []catalogs.Badge{{
		Content:         r.title.String(label),
		BackgroundColor: color,
		TextColor:       color,
	}}
	if rev.Source != "" {
		badges = append(badges, catalogs.Badge{
			Content:         "Source: " + rev.Source,
			BackgroundColor: "gray",
			TextColor:       "gray",
		})
	}
	return badges
}

func (r *defaultRenderer) summary(rev *catalogs.Revision) string {
	if s := rev.SourceFields.String(catalogs.FieldSummary); s != "" {
		return s
	}
	if desc := rev.SourceFields.String(catalogs.FieldDescription); desc != "" {
		if i := strings.IndexAny(desc, "\n"); i > 0 {
			desc = desc[:i]
		}
		return strings.TrimSpace(desc)
	}
	return fmt.Sprintf("%s %s", r.name(rev), r.title.String(r.label(rev)))
}

// specNames lists the keys of a specifications map in sorted order.
func specNames(fields catalogs.Fields) []string {
	specs, ok := fields[catalogs.FieldSpecifications].(map[string]any)
	if !ok || len(specs) == 0 {
		return nil
	}
	names := catalogs.Fields(specs).Keys()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%s: %v", n, specs[n])
	}
	return out
}
