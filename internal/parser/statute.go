package parser

import (
	"regexp"
	"strings"

	"labourlaw-rag/internal/models"
)

var (
	chapterRe = regexp.MustCompile(models.ChapterRegex)
	sectionRe = regexp.MustCompile(models.SectionRegex)
	formRe    = regexp.MustCompile(models.FormRegex)
	spaceRe   = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// statuteState tracks the chapter and section headings seen so far while
// walking a document line by line. Text between two headings is chunked as
// one unit so that no chunk straddles a section boundary.
type statuteState struct {
	chapter, section string
	page             int
	content          strings.Builder
	nextID           map[int]int
	result           []models.Chunk
	p                *Parser
}

func (p *Parser) chunkPages(pages []page) []models.Chunk {
	state := &statuteState{p: p, nextID: make(map[int]int)}
	for _, pg := range pages {
		state.startPage(pg.number)
		for _, line := range strings.Split(pg.text, "\n") {
			line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
			if line == "" {
				continue
			}
			state.processLine(line)
		}
	}
	state.flush()
	return state.result
}

// startPage flushes the previous page; headings carry over.
func (s *statuteState) startPage(number int) {
	s.flush()
	s.page = number
}

func (s *statuteState) processLine(line string) {
	switch {
	case chapterRe.MatchString(line):
		m := chapterRe.FindStringSubmatch(line)
		s.flush()
		s.chapter = m[1]
		if title := strings.TrimSpace(strings.Trim(m[2], ".:-–— ")); title != "" {
			s.chapter += " - " + title
		}
		s.section = ""
	case sectionRe.MatchString(line) && startsUpper(sectionRe.FindStringSubmatch(line)[2]):
		s.flush()
		s.section = sectionRe.FindStringSubmatch(line)[1]
	case formRe.MatchString(line):
		s.flush()
		s.section = "Form " + formRe.FindStringSubmatch(line)[1]
	}

	if s.content.Len() > 0 {
		s.content.WriteString("\n")
	}
	s.content.WriteString(line)
}

// flush chunks the accumulated content under the current headings.
func (s *statuteState) flush() {
	if s.content.Len() == 0 {
		return
	}
	for _, c := range chunkContent(s.content.String(), s.p.chunkSize, s.p.chunkOverlap) {
		s.nextID[s.page]++
		s.result = append(s.result, models.Chunk{
			Content:    c,
			PageNumber: s.page,
			ChunkID:    s.nextID[s.page],
			Chapter:    s.chapter,
			Section:    s.section,
		})
	}
	s.content.Reset()
}

func startsUpper(s string) bool {
	for _, r := range s {
		return r >= 'A' && r <= 'Z'
	}
	return false
}
