package knowledge

import (
	"context"
	"errors"
)

var ErrEmptyQuery = errors.New("knowledge: query parameter is required")

// Document is one ranked passage from the FAQ knowledge base.
type Document struct {
	Rank     int            `json:"rank"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Retriever returns ranked passages for a query. An empty result is not an
// error; callers decide how to degrade.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}
