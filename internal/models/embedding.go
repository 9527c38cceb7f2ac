package models

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
	Chapter    string
	Section    string
}

// ChunkEmbedding is a chunk ready to be written to a jurisdiction index.
type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SourceFilename string
	PageNumber     int
	ChunkID        int
	Chapter        string
	Section        string
}

// Passage is a retrieved unit of text with its provenance.
type Passage struct {
	Source       string  `json:"source"`
	Page         string  `json:"page"`
	Text         string  `json:"text"`
	Jurisdiction string  `json:"jurisdiction,omitempty"`
	Score        float32 `json:"score,omitempty"`
}
