package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
)

func TestSafeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  minimum \n\n wage\t rate ", want: "minimum wage rate"},
		{name: "drops control characters", in: "wage\x00s\x07", want: "wages"},
		{name: "drops invalid utf8", in: "wa\xffge", want: "wage"},
		{name: "folds compatibility forms", in: "ﬁxation of ｗａｇｅｓ", want: "fixation of wages"},
		{name: "drops byte order mark", in: "\uFEFFSection 5", want: "Section 5"},
		{name: "empty", in: " \n ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeText(tt.in))
		})
	}
}

func TestTag(t *testing.T) {
	got := Tag(models.Passage{Source: "OSH_Rules.pdf", Page: "42", Text: "Registers shall be\nmaintained electronically."})
	assert.Equal(t, "[SOURCE: OSH_Rules.pdf | PAGE: 42]\nRegisters shall be maintained electronically.", got)

	got = Tag(models.Passage{Text: "untitled"})
	assert.Equal(t, "[SOURCE: Unknown | PAGE: ?]\nuntitled", got)
}

func TestComposedContextPreservesOrder(t *testing.T) {
	cc := &ComposedContext{
		Primary: Block{Jurisdiction: jurisdiction.Maharashtra, Passages: []models.Passage{
			{Source: "a.pdf", Page: "1", Text: "first"},
			{Source: "b.pdf", Page: "2", Text: "second"},
		}},
		Secondary: []Block{
			{Jurisdiction: jurisdiction.Gujarat, Passages: []models.Passage{{Source: "g.pdf", Page: "9", Text: "third"}}},
		},
	}

	s := cc.String()
	assert.Equal(t, 3, strings.Count(s, "[SOURCE:"), "one tag per passage")
	order := []string{"[JURISDICTION: Maharashtra]", "[SOURCE: a.pdf | PAGE: 1]\nfirst", "[SOURCE: b.pdf | PAGE: 2]\nsecond", "[JURISDICTION: Gujarat]", "[SOURCE: g.pdf | PAGE: 9]\nthird"}
	last := -1
	for _, part := range order {
		idx := strings.Index(s, part)
		assert.Greater(t, idx, last, "%q out of order", part)
		last = idx
	}

	assert.Len(t, cc.Passages(), 3)
	assert.Equal(t, "third", cc.Passages()[2].Text)
}
