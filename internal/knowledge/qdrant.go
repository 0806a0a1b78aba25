package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/ai"
)

type QdrantConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Collection     string        `mapstructure:"collection"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ScoreThreshold float64       `mapstructure:"score_threshold"`
	// payload keys written by the FAQ indexer
	ContentField  string `mapstructure:"content_field"`
	MetadataField string `mapstructure:"metadata_field"`
}

// QdrantRetriever embeds the query and runs a nearest-neighbour search over the
// FAQ collection through Qdrant's REST API.
type QdrantRetriever struct {
	cfg      QdrantConfig
	baseURL  string
	client   *http.Client
	embedder ai.Embedder
	logger   *zap.Logger
}

func NewQdrantRetriever(cfg QdrantConfig, embedder ai.Embedder, logger *zap.Logger) *QdrantRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "waterdrop_faq"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "page_content"
	}
	if cfg.MetadataField == "" {
		cfg.MetadataField = "metadata"
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}

	return &QdrantRetriever{
		cfg:      cfg,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: cfg.Timeout},
		embedder: embedder,
		logger:   logger.With(zap.String("component", "qdrant")),
	}
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Status string `json:"status"`
}

func (r *QdrantRetriever) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return []Document{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	req := searchRequest{Vector: vec, Limit: topK, WithPayload: true}
	if r.cfg.ScoreThreshold > 0 {
		st := r.cfg.ScoreThreshold
		req.ScoreThreshold = &st
	}

	var resp searchResponse
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(r.cfg.Collection))
	if err := r.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.Result))
	for _, hit := range resp.Result {
		content, _ := hit.Payload[r.cfg.ContentField].(string)
		if content == "" {
			continue
		}
		doc := Document{Rank: len(docs) + 1, Content: content, Score: hit.Score}
		if m, ok := hit.Payload[r.cfg.MetadataField].(map[string]any); ok {
			doc.Metadata = m
		}
		docs = append(docs, doc)
	}

	r.logger.Debug("qdrant search completed",
		zap.String("collection", r.cfg.Collection),
		zap.Int("hits", len(docs)),
	)
	return docs, nil
}

func (r *QdrantRetriever) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("api-key", r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
