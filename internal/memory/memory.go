// Package memory stores past interactions and recalls the ones relevant
// to a new query.
//
// Recall is a best-effort enrichment for chat answers. When an embedding
// API key is configured the store is vector-backed (chromem); otherwise it
// degrades to lexical overlap scoring over an in-memory ring. Either way a
// recall failure never fails the request that triggered it.
package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/trendd/internal/config"
	"github.com/fyrsmithlabs/trendd/internal/logging"
)

// Interaction is one stored exchange.
type Interaction struct {
	ID        string
	Query     string
	Response  string
	Route     string
	Timestamp time.Time
}

// Recall is one remembered interaction scored against a query.
type Recall struct {
	Query    string
	Response string
	Route    string
	Score    float64
}

// Store persists interactions and recalls relevant ones.
type Store interface {
	Add(ctx context.Context, in Interaction) error
	Search(ctx context.Context, query string, k int) ([]Recall, error)
}

// maxLexicalEntries bounds the fallback store.
const maxLexicalEntries = 500

const collectionName = "interactions"

// New creates the memory store appropriate for the configuration.
//
// Disabled config yields a store that remembers nothing. An embedding API
// key yields a chromem-backed vector store; without one the store falls
// back to lexical recall.
func New(cfg *config.MemoryConfig, embeddingKey string, logger *logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("memory")

	if cfg == nil || cfg.Disabled {
		return &noopStore{}, nil
	}

	if embeddingKey == "" {
		logger.Info(context.Background(), "no embedding key configured, using lexical recall")
		return newLexicalStore(), nil
	}

	store, err := newVectorStore(cfg, embeddingKey, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// noopStore remembers nothing.
type noopStore struct{}

func (*noopStore) Add(context.Context, Interaction) error { return nil }

func (*noopStore) Search(context.Context, string, int) ([]Recall, error) { return nil, nil }

// lexicalStore scores stored interactions by term overlap with the query.
type lexicalStore struct {
	mu      sync.Mutex
	entries []Interaction
}

func newLexicalStore() *lexicalStore {
	return &lexicalStore{}
}

func (s *lexicalStore) Add(_ context.Context, in Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, in)
	if len(s.entries) > maxLexicalEntries {
		s.entries = s.entries[len(s.entries)-maxLexicalEntries:]
	}
	return nil
}

func (s *lexicalStore) Search(_ context.Context, query string, k int) ([]Recall, error) {
	if k <= 0 {
		return nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Recall
	for _, e := range s.entries {
		text := strings.ToLower(e.Query + " " + e.Response)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		out = append(out, Recall{
			Query:    e.Query,
			Response: e.Response,
			Route:    e.Route,
			Score:    float64(matched) / float64(len(terms)),
		})
	}

	sortRecalls(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// sortRecalls orders by score descending, stable for equal scores.
func sortRecalls(rs []Recall) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].Score > rs[j-1].Score; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// vectorStore is a chromem-backed store with OpenAI embeddings.
type vectorStore struct {
	collection *chromem.Collection
	logger     *logging.Logger

	mu    sync.Mutex
	count int
}

func newVectorStore(cfg *config.MemoryConfig, embeddingKey string, logger *logging.Logger) (*vectorStore, error) {
	var db *chromem.DB
	var err error

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating memory directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("creating persistent memory db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := chromem.NewEmbeddingFuncOpenAI(embeddingKey, chromem.EmbeddingModelOpenAI3Small)
	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating memory collection: %w", err)
	}

	return &vectorStore{
		collection: collection,
		logger:     logger,
		count:      collection.Count(),
	}, nil
}

func (s *vectorStore) Add(ctx context.Context, in Interaction) error {
	doc := chromem.Document{
		ID:      in.ID,
		Content: in.Query + "\n" + in.Response,
		Metadata: map[string]string{
			"query":     in.Query,
			"response":  in.Response,
			"route":     in.Route,
			"timestamp": in.Timestamp.UTC().Format(time.RFC3339),
		},
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("storing interaction: %w", err)
	}

	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func (s *vectorStore) Search(ctx context.Context, query string, k int) ([]Recall, error) {
	if k <= 0 || query == "" {
		return nil, nil
	}

	// chromem rejects k greater than the collection size.
	s.mu.Lock()
	if k > s.count {
		k = s.count
	}
	s.mu.Unlock()
	if k == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}

	out := make([]Recall, 0, len(results))
	for _, r := range results {
		out = append(out, Recall{
			Query:    r.Metadata["query"],
			Response: r.Metadata["response"],
			Route:    r.Metadata["route"],
			Score:    float64(r.Similarity),
		})
	}
	s.logger.Debug(ctx, "memory recall", zap.Int("results", len(out)))
	return out, nil
}
