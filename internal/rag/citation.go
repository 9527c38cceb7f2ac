package rag

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
)

const (
	unknownSource = "Unknown"
	unknownPage   = "?"
)

// SafeText normalises text for a prompt: invalid UTF-8 and control
// characters are dropped, compatibility forms folded (NFKC) and whitespace
// runs collapsed to one space.
func SafeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Tag renders the citation tag for p followed by its normalised text.
func Tag(p models.Passage) string {
	source := SafeText(p.Source)
	if source == "" {
		source = unknownSource
	}
	page := SafeText(p.Page)
	if page == "" {
		page = unknownPage
	}
	return fmt.Sprintf("[SOURCE: %s | PAGE: %s]\n%s", source, page, SafeText(p.Text))
}

// Block is the context contributed by one jurisdiction, passages in rank order.
type Block struct {
	Jurisdiction jurisdiction.Jurisdiction
	Passages     []models.Passage
}

func (b Block) String() string {
	parts := make([]string, 0, len(b.Passages)+1)
	parts = append(parts, fmt.Sprintf("[JURISDICTION: %s]", b.Jurisdiction))
	for _, p := range b.Passages {
		parts = append(parts, Tag(p))
	}
	return strings.Join(parts, models.ContextSeparator)
}

// ComposedContext is the primary jurisdiction's block followed by one block
// per additional jurisdiction.
type ComposedContext struct {
	Primary   Block
	Secondary []Block
}

func (c *ComposedContext) String() string {
	blocks := make([]string, 0, len(c.Secondary)+1)
	blocks = append(blocks, c.Primary.String())
	for _, b := range c.Secondary {
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, models.ContextSeparator)
}

// Passages returns every passage in context order.
func (c *ComposedContext) Passages() []models.Passage {
	out := append([]models.Passage(nil), c.Primary.Passages...)
	for _, b := range c.Secondary {
		out = append(out, b.Passages...)
	}
	return out
}
