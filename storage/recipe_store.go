package storage

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"clipOntology/config"
	"clipOntology/core"
)

// RecipeHit is one semantic search result over stored recipe entries.
type RecipeHit struct {
	Score float64          `json:"score"`
	Entry core.RecipeEntry `json:"entry"`
}

// RecipeVectorStore indexes recipe entries for "find analogous past script
// phrasing" queries. The substring search in the brain package is the
// always-available path; this store adds embedding-based similarity when a
// backend is configured.
type RecipeVectorStore interface {
	Upsert(videoID string, entries []core.RecipeEntry) int
	Search(query string, topK int) []RecipeHit
}

// NewRecipeVectorStore selects the backend from the STORE env var
// (memory / milvus / pgvector), falling back to memory when a backend or its
// API configuration is unavailable.
func NewRecipeVectorStore() RecipeVectorStore {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to load config (%v), using memory recipe store\n", err)
		return newMemoryRecipeStore()
	}

	storeKind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))
	switch storeKind {
	case "milvus":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			fmt.Println("Warning: API configuration required for Milvus store, falling back to memory store")
			return newMemoryRecipeStore()
		}
		s, err := newMilvusRecipeStore()
		if err != nil {
			fmt.Printf("Warning: Failed to initialize Milvus store (%v), falling back to memory store\n", err)
			return newMemoryRecipeStore()
		}
		return s
	case "pgvector":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			fmt.Println("Warning: API configuration required for PgVector store, falling back to memory store")
			return newMemoryRecipeStore()
		}
		s, err := newPgVectorRecipeStore()
		if err != nil {
			fmt.Printf("Warning: Failed to initialize PgVector store (%v), falling back to memory store\n", err)
			return newMemoryRecipeStore()
		}
		return s
	default:
		return newMemoryRecipeStore()
	}
}

func entryText(e core.RecipeEntry) string {
	return strings.ToLower(strings.TrimSpace(e.Script + " " + e.Purpose))
}

// ---------------- Memory implementation (kept for fallback) ----------------

type memoryRecipeDoc struct {
	entry core.RecipeEntry
	embed map[string]float64 // term -> weight
}

type MemoryRecipeStore struct {
	mu   sync.RWMutex
	docs []memoryRecipeDoc
}

func newMemoryRecipeStore() *MemoryRecipeStore {
	return &MemoryRecipeStore{}
}

func (s *MemoryRecipeStore) Upsert(videoID string, entries []core.RecipeEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-upserting a video replaces its previous entries.
	kept := s.docs[:0]
	for _, d := range s.docs {
		if d.entry.VideoID != videoID {
			kept = append(kept, d)
		}
	}
	s.docs = kept
	for _, e := range entries {
		s.docs = append(s.docs, memoryRecipeDoc{entry: e, embed: embedText(entryText(e))})
	}
	return len(entries)
}

func (s *MemoryRecipeStore) Search(query string, topK int) []RecipeHit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qv := embedText(strings.ToLower(query))
	type scored struct {
		i     int
		score float64
	}
	scores := make([]scored, 0, len(s.docs))
	for i, d := range s.docs {
		scores = append(scores, scored{i, cosine(qv, d.embed)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK <= 0 || topK > len(scores) {
		topK = minInt(len(scores), 5)
	}
	hits := make([]RecipeHit, 0, topK)
	for _, sc := range scores[:topK] {
		hits = append(hits, RecipeHit{Score: sc.score, Entry: s.docs[sc.i].entry})
	}
	return hits
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func embedText(text string) map[string]float64 {
	toks := tokenize(text)
	m := map[string]float64{}
	for _, t := range toks {
		m[t] += 1
	}
	// L2 normalize
	var sum float64
	for _, v := range m {
		sum += v * v
	}
	if sum == 0 {
		return m
	}
	norm := math.Sqrt(sum)
	for k, v := range m {
		m[k] = v / norm
	}
	return m
}

func cosine(a, b map[string]float64) float64 {
	var dot float64
	for k, va := range a {
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	return dot
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ---------------- Milvus implementation ----------------

type MilvusRecipeStore struct {
	mc   client.Client
	coll string
	dim  int
	oa   *openai.Client
}

func newMilvusRecipeStore() (*MilvusRecipeStore, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	username := os.Getenv("MILVUS_USERNAME")
	password := os.Getenv("MILVUS_PASSWORD")
	apiKey := os.Getenv("MILVUS_API_KEY") // For Zilliz Cloud
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "recipe_entries"
	}

	mc, err := client.NewClient(context.Background(), client.Config{Address: addr, Username: username, Password: password, APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusRecipeStore{mc: mc, coll: coll, dim: 1536}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusRecipeStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("function").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("script").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("purpose").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusRecipeStore) embed(text string) ([]float32, error) {
	if s.oa == nil {
		s.oa = openaiClient()
	}
	return embedWithClient(s.oa, text)
}

func (s *MilvusRecipeStore) Upsert(videoID string, entries []core.RecipeEntry) int {
	if len(entries) == 0 {
		return 0
	}
	videoIDs := make([]string, 0, len(entries))
	functions := make([]string, 0, len(entries))
	scripts := make([]string, 0, len(entries))
	purposes := make([]string, 0, len(entries))
	starts := make([]float64, 0, len(entries))
	ends := make([]float64, 0, len(entries))
	vectors := make([][]float32, 0, len(entries))

	for _, e := range entries {
		v, err := s.embed(entryText(e))
		if err != nil {
			continue
		}
		videoIDs = append(videoIDs, videoID)
		functions = append(functions, e.Function())
		scripts = append(scripts, e.Script)
		purposes = append(purposes, e.Purpose)
		starts = append(starts, e.Start)
		ends = append(ends, e.End)
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return 0
	}

	ctx := context.Background()
	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnVarChar("function", functions),
		entity.NewColumnVarChar("script", scripts),
		entity.NewColumnVarChar("purpose", purposes),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0
	}
	return len(vectors)
}

func (s *MilvusRecipeStore) Search(query string, topK int) []RecipeHit {
	v, err := s.embed(strings.ToLower(query))
	if err != nil {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}
	ctx := context.Background()
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, "", []string{"video_id", "function", "script", "purpose", "start", "end"}, []entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil
	}
	var hits []RecipeHit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			entry := core.RecipeEntry{Labels: map[string]string{}}
			if c, ok := cols["video_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					entry.VideoID = data[i]
				}
			}
			if c, ok := cols["function"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					entry.Labels["clip_function"] = data[i]
				}
			}
			if c, ok := cols["script"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					entry.Script = data[i]
				}
			}
			if c, ok := cols["purpose"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					entry.Purpose = data[i]
				}
			}
			if c, ok := cols["start"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					entry.Start = data[i]
				}
			}
			if c, ok := cols["end"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					entry.End = data[i]
				}
			}
			hits = append(hits, RecipeHit{Score: float64(r.Scores[i]), Entry: entry})
		}
	}
	return hits
}

// ---------------- PgVector implementation ----------------

type PgVectorRecipeStore struct {
	conn *pgx.Conn
	oa   *openai.Client
}

func newPgVectorRecipeStore() (*PgVectorRecipeStore, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorRecipeStore{conn: conn}
	if err := s.ensureTable(); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorRecipeStore) ensureTable() error {
	ctx := context.Background()

	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS recipe_entries (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			clip_function VARCHAR(255) NOT NULL,
			entry_id VARCHAR(255) NOT NULL,
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			script TEXT NOT NULL,
			purpose TEXT,
			embedding vector(1536),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(video_id, entry_id)
		);
	`
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create recipe_entries table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_recipe_entries_video_id ON recipe_entries(video_id);",
		"CREATE INDEX IF NOT EXISTS idx_recipe_entries_function ON recipe_entries(clip_function);",
	}
	for _, indexQuery := range indexes {
		if _, err := s.conn.Exec(ctx, indexQuery); err != nil {
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}
	return nil
}

func (s *PgVectorRecipeStore) embed(text string) ([]float32, error) {
	if s.oa == nil {
		s.oa = openaiClient()
	}
	return embedWithClient(s.oa, text)
}

func (s *PgVectorRecipeStore) Upsert(videoID string, entries []core.RecipeEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ctx := context.Background()
	successCount := 0

	for _, e := range entries {
		embedding, err := s.embed(entryText(e))
		if err != nil {
			continue // Skip this entry if embedding fails
		}
		vec := pgvector.NewVector(embedding)

		_, err = s.conn.Exec(ctx, `
			INSERT INTO recipe_entries (video_id, clip_function, entry_id, start_time, end_time, script, purpose, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (video_id, entry_id)
			DO UPDATE SET
				clip_function = EXCLUDED.clip_function,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				script = EXCLUDED.script,
				purpose = EXCLUDED.purpose,
				embedding = EXCLUDED.embedding
		`, videoID, e.Function(), fmt.Sprintf("%s_%.3f", videoID, e.Start), e.Start, e.End, e.Script, e.Purpose, vec)
		if err != nil {
			continue
		}
		successCount++
	}
	return successCount
}

func (s *PgVectorRecipeStore) Search(query string, topK int) []RecipeHit {
	if topK <= 0 {
		topK = 5
	}
	queryEmbedding, err := s.embed(strings.ToLower(query))
	if err != nil {
		return nil
	}
	vec := pgvector.NewVector(queryEmbedding)
	ctx := context.Background()

	rows, err := s.conn.Query(ctx, `
		SELECT video_id, clip_function, start_time, end_time, script, purpose,
			   1 - (embedding <=> $1) as similarity
		FROM recipe_entries
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, topK)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var hits []RecipeHit
	for rows.Next() {
		var entry core.RecipeEntry
		var function string
		var similarity float64
		var purpose *string
		if err := rows.Scan(&entry.VideoID, &function, &entry.Start, &entry.End, &entry.Script, &purpose, &similarity); err != nil {
			continue
		}
		if purpose != nil {
			entry.Purpose = *purpose
		}
		entry.Labels = map[string]string{"clip_function": function}
		hits = append(hits, RecipeHit{Score: similarity, Entry: entry})
	}
	return hits
}

// ---------------- Embedding helpers ----------------

func openaiClient() *openai.Client {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback to environment variable
		return openai.NewClient(os.Getenv("API_KEY"))
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func embedWithClient(cli *openai.Client, text string) ([]float32, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(cfg.EmbeddingModel),
		Input: []string{text},
	}
	resp, err := cli.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %v", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}
