package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository stores knowledge chunks and runs tenant-scoped searches
// over them. Every method requires a tenant ID.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

// InsertChunk stores a single chunk.
func (r *ChunkRepository) InsertChunk(ctx context.Context, c *domain.KnowledgeChunk) error {
	if c.TenantID == "" {
		return domain.ErrMissingTenantID
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO kb_docs (id, tenant_id, source, section, doc_type, version, content, embedding, tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID,
		c.TenantID,
		nullableString(c.Source),
		nullableString(c.Section),
		nullableString(c.DocType),
		nullableString(c.Version),
		c.Content,
		pgvector.NewVector(c.Embedding),
		c.Tokens,
		createdAt,
	)
	return err
}

// NearestNeighbors returns the tenant's chunks closest to vector by cosine
// distance, with Similarity = 1 - distance.
//
// The HNSW index is filtered by tenant after the graph scan, so the query runs
// with iterative scanning in strict order: the index keeps producing
// candidates until limit rows of this tenant are found or the table is
// exhausted. Requires pgvector 0.8 or newer.
func (r *ChunkRepository) NearestNeighbors(ctx context.Context, tenantID string, vector []float32, limit int) ([]*domain.RetrievalCandidate, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenantID
	}

	var results []*domain.RetrievalCandidate
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SET LOCAL hnsw.iterative_scan = strict_order`); err != nil {
			return err
		}
		rows, err := tx.Query(ctx,
			`SELECT id::text, content, COALESCE(source, ''), COALESCE(section, ''),
			        1 - (embedding <=> $1) AS similarity
			 FROM kb_docs
			 WHERE tenant_id = $2
			 ORDER BY embedding <=> $1
			 LIMIT $3`,
			pgvector.NewVector(vector), tenantID, limit,
		)
		if err != nil {
			return err
		}
		results, err = scanCandidates(rows, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SubstringMatch returns the tenant's chunks whose content, source or section
// contains needle, ignoring case. Similarity is left at zero.
func (r *ChunkRepository) SubstringMatch(ctx context.Context, tenantID, needle string, limit int) ([]*domain.RetrievalCandidate, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenantID
	}
	rows, err := r.db.Query(ctx,
		`SELECT id::text, content, COALESCE(source, ''), COALESCE(section, '')
		 FROM kb_docs
		 WHERE tenant_id = $1
		   AND (strpos(lower(content), lower($2)) > 0
		        OR strpos(lower(COALESCE(source, '')), lower($2)) > 0
		        OR strpos(lower(COALESCE(section, '')), lower($2)) > 0)
		 ORDER BY created_at, id
		 LIMIT $3`,
		tenantID, needle, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanCandidates(rows, false)
}

// CountByTenant returns how many chunks a tenant has stored.
func (r *ChunkRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, domain.ErrMissingTenantID
	}
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM kb_docs WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, err
}

func scanCandidates(rows pgx.Rows, withSimilarity bool) ([]*domain.RetrievalCandidate, error) {
	defer rows.Close()

	results := []*domain.RetrievalCandidate{}
	for rows.Next() {
		var c domain.RetrievalCandidate
		dest := []any{&c.ID, &c.Content, &c.Source, &c.Section}
		if withSimilarity {
			dest = append(dest, &c.Similarity)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}
