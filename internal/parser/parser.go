package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/models"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
	defaultPageNumber   = 1
)

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// page is the raw text of one page, slide or sheet.
type page struct {
	number int
	text   string
}

// Parser splits documents into overlapping, page-numbered chunks.
type Parser struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a parser using the chunking settings in cfg. A nil cfg uses
// the defaults.
func New(cfg *config.RAGConfig) *Parser {
	p := &Parser{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap}
	if cfg != nil && cfg.ChunkSize > 0 {
		p.chunkSize = cfg.ChunkSize
		p.chunkOverlap = cfg.ChunkOverlap
	}
	return p
}

// ParseFile reads a pdf, docx, pptx, xlsx or txt file into chunks carrying
// page numbers and the statute chapter and section they fall under.
func (p *Parser) ParseFile(filePath string) ([]models.Chunk, error) {
	var pages []page
	var err error

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = readPDF(filePath)
	case ".docx":
		pages, err = readDOCX(filePath)
	case ".pptx":
		pages, err = readPPTX(filePath)
	case ".xlsx":
		pages, err = readXLSX(filePath)
	case ".txt":
		pages, err = readText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(filePath), err)
	}

	chunks := p.chunkPages(pages)
	log.Debug().Str("file", filePath).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Parsed document")
	return chunks, nil
}

func readPDF(filePath string) ([]page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, page{number: i, text: pageText})
	}
	return pages, nil
}

func readDOCX(filePath string) ([]page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page numbers
	content := r.Editable().GetContent()
	return []page{{number: defaultPageNumber, text: extractTextFromXML(content, "<w:t", "</w:t>")}}, nil
}

func readPPTX(filePath string) ([]page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []page
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		slideNum, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		pages = append(pages, page{number: slideNum, text: extractTextFromXML(string(data), "<a:t", "</a:t>")})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}

func readXLSX(filePath string) ([]page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		pages = append(pages, page{number: sheetNum + 1, text: text.String()})
	}
	return pages, nil
}

// readText treats form feeds as page breaks.
func readText(filePath string) ([]page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var pages []page
	for i, text := range strings.Split(string(data), "\f") {
		pages = append(pages, page{number: i + 1, text: text})
	}
	return pages, nil
}

// extractTextFromXML concatenates the text runs between openTag and closeTag.
// openTag is given without its closing bracket so that attributes are allowed.
func extractTextFromXML(xmlContent, openTag, closeTag string) string {
	if !strings.Contains(xmlContent, openTag) {
		return xmlContent
	}
	var text strings.Builder
	parts := strings.Split(xmlContent, openTag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// skip attributes, and tags like <w:tab> that share the prefix
		gt := strings.Index(part, ">")
		if gt < 0 || (gt > 0 && part[0] != ' ' && part[0] != '>') {
			continue
		}
		part = part[gt+1:]
		endIdx := strings.Index(part, closeTag)
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
		if strings.Contains(part[max(endIdx, 0):], "</w:p>") {
			text.WriteString("\n")
		}
	}
	return text.String()
}

// chunk content into chunks with maxChars and overlapChars. Lengths are
// counted in runes so multi-byte characters are never split.
func chunkContent(content string, maxChars, overlapChars int) []string {
	// Handle edge cases
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}

	// If content is shorter than maxChars, return it as a single chunk
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// Prefer to break on a space, newline or full stop in the last 10% of the chunk
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		// Move start forward, accounting for overlap
		next := end - overlapChars
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
