package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labourlaw-rag/internal/llmservice"
	"labourlaw-rag/internal/models"
)

func TestContextualizeKeepsOrder(t *testing.T) {
	llm := &llmservice.ScriptedCompleter{Rules: []llmservice.Rule{
		{Match: "<chunk>\nWages shall be paid", Reply: "Chapter II on payment of wages."},
		{Match: "<chunk>\nOvertime", Reply: "  "},
	}}
	chunks := []models.Chunk{
		{Content: "Wages shall be paid before the seventh day.", PageNumber: 1, ChunkID: 0},
		{Content: "Overtime is paid at twice the rate.", PageNumber: 2, ChunkID: 0},
	}

	out, err := contextualize(context.Background(), llm, chunks, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Chapter II on payment of wages.\n\nWages shall be paid before the seventh day.", out[0].Content)
	assert.Equal(t, "Overtime is paid at twice the rate.", out[1].Content)
	assert.Equal(t, 2, out[1].PageNumber)

	// every prompt carries the whole document
	assert.Equal(t, 2, llm.Count("before the seventh day.\n\nOvertime is paid"))
}

func TestContextualizeFails(t *testing.T) {
	llm := &llmservice.ScriptedCompleter{Rules: []llmservice.Rule{
		{Match: "", Err: errors.New("model unavailable")},
	}}
	_, err := contextualize(context.Background(), llm, []models.Chunk{{Content: "x"}}, 1)
	assert.Error(t, err)
}
