// Package render draws improvement results for a terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zoobzio/reprompt"
)

var (
	// Colors
	colorTask     = lipgloss.Color("#7C3AED")
	colorRules    = lipgloss.Color("#06B6D4")
	colorExamples = lipgloss.Color("#10B981")
	colorError    = lipgloss.Color("#EF4444")
	colorMuted    = lipgloss.Color("#6B7280")

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func sectionColor(s reprompt.Section) lipgloss.Color {
	switch s {
	case reprompt.SectionTask:
		return colorTask
	case reprompt.SectionRules:
		return colorRules
	case reprompt.SectionExamples:
		return colorExamples
	default:
		return colorMuted
	}
}

// Renderer styles output, or passes text through untouched when plain.
type Renderer struct {
	plain bool
}

// New creates a Renderer. With color false every method returns unstyled text.
func New(color bool) *Renderer {
	return &Renderer{plain: !color}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// Highlighted renders text with its section headers and bodies styled.
func (r *Renderer) Highlighted(text string, highlights []reprompt.Highlight) string {
	var b strings.Builder
	for _, seg := range reprompt.Segments(text, highlights) {
		switch seg.Kind {
		case reprompt.HighlightSectionHeader:
			b.WriteString(r.style(lipgloss.NewStyle().Foreground(sectionColor(seg.Section)).Bold(true), seg.Text))
		case reprompt.HighlightSectionBody:
			b.WriteString(r.style(lipgloss.NewStyle().Foreground(sectionColor(seg.Section)), seg.Text))
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Comparison renders the original prompt, the highlighted rewrite, the
// per-section explanations and the sentence mapping.
func (r *Renderer) Comparison(c *reprompt.Comparison) string {
	var b strings.Builder

	b.WriteString(r.style(styleTitle, "Original"))
	b.WriteString("\n")
	b.WriteString(r.box(c.OriginalPrompt))
	b.WriteString("\n\n")

	b.WriteString(r.style(styleTitle, "Improved"))
	b.WriteString("\n")
	b.WriteString(r.box(r.Highlighted(c.Response.ImprovedPrompt, c.Highlights)))
	b.WriteString("\n\n")

	b.WriteString(r.style(styleTitle, "Why it's better"))
	b.WriteString("\n")
	for _, section := range reprompt.Sections() {
		for _, e := range c.Response.Explanations {
			if e.Section != section {
				continue
			}
			label := r.style(lipgloss.NewStyle().Foreground(sectionColor(section)).Bold(true), string(section)+":")
			fmt.Fprintf(&b, "  %s %s\n", label, e.Tooltip)
		}
	}

	b.WriteString("\n")
	b.WriteString(r.style(styleTitle, "Mapping"))
	b.WriteString("\n")
	for _, m := range c.Response.Mapping {
		fmt.Fprintf(&b, "  %q %s %s\n", m.OriginalSentence,
			r.style(styleMuted, "->"), strings.Join(m.ImprovedSections, ", "))
	}

	return b.String()
}

// Failure renders a classified error with its user-facing message only.
func (r *Renderer) Failure(failure *reprompt.ClassifiedError) string {
	out := r.style(styleError, "Error: ") + failure.Message
	if failure.Retryable {
		out += "\n" + r.style(styleMuted, "This can be retried.")
	}
	return out
}

func (r *Renderer) box(text string) string {
	if r.plain {
		return text
	}
	return styleBox.Render(text)
}
