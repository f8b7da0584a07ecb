package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// Postgres and MySQL drivers, both real dependencies of the
	// teradata-labs-loom pack repo's pkg/fabric/factory backend factory,
	// which dials into database/sql the same way: blank-imported for their
	// side-effecting driver registration, with database/sql doing all the
	// actual query work.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/airuntime/core/errs"
)

// SQLDialect distinguishes the two supported relational backends; each
// uses a different placeholder syntax and CREATE TABLE dialect.
type SQLDialect string

const (
	DialectPostgres SQLDialect = "postgres"
	DialectMySQL    SQLDialect = "mysql"
)

// SQL implements Store over a relational database/sql connection,
// grounded on teradata-labs-loom's factory.go newSQLBackend (driver
// registration via blank import, sql.Open against a DSN, pooled *sql.DB).
// With pgvector enabled, CreateCollection declares the embedding column
// as a pgvector vector(n); otherwise it is JSON. Search and
// SearchByVector do not issue an indexed ANN query in either case: they
// load every row and compute cosine similarity in Go, O(n) per
// collection.
type SQL struct {
	db       *sql.DB
	dialect  SQLDialect
	pgvector bool
	embedder *Embedder
}

// NewSQL wraps db for dialect. Set pgvectorEnabled true only when the
// pgvector extension is installed on the Postgres server; MySQL ignores
// the flag.
func NewSQL(db *sql.DB, dialect SQLDialect, pgvectorEnabled bool) (*SQL, error) {
	s := &SQL{db: db, dialect: dialect, pgvector: dialect == DialectPostgres && pgvectorEnabled}
	return s, nil
}

// WithEmbedder configures automatic embedding generation.
func (s *SQL) WithEmbedder(e Embedder) *SQL {
	s.embedder = &e
	return s
}

func (s *SQL) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) tableName(collection string) string {
	return "vecstore_" + collection
}

func (s *SQL) CreateCollection(ctx context.Context, name string, dimension int, space SpaceType) error {
	table := s.tableName(name)
	var schema string
	if s.pgvector {
		schema = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, content TEXT, metadata JSONB, embedding vector(%d)
		)`, table, dimension)
	} else if s.dialect == DialectPostgres {
		schema = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY, content TEXT, metadata JSONB, embedding JSONB
		)`, table)
	} else {
		schema = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY, content TEXT, metadata JSON, embedding JSON
		)`, table)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	return nil
}

func (s *SQL) CollectionExists(ctx context.Context, name string) (bool, error) {
	var q string
	switch s.dialect {
	case DialectPostgres:
		q = `SELECT 1 FROM information_schema.tables WHERE table_name = $1`
	default:
		q = `SELECT 1 FROM information_schema.tables WHERE table_name = ?`
	}
	row := s.db.QueryRowContext(ctx, q, s.tableName(name))
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	return true, nil
}

func (s *SQL) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+s.tableName(name))
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	return nil
}

func (s *SQL) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, errs.New(errs.ConfigMissing, "vector-sql: no embedding provider configured")
	}
	return s.embedder.Embed(ctx, text)
}

func (s *SQL) upsertOne(ctx context.Context, collection string, doc Document) error {
	if doc.Embedding == nil {
		emb, err := s.embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		doc.Embedding = emb
	}
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "vector-sql", err)
	}
	embJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "vector-sql", err)
	}

	var q string
	switch s.dialect {
	case DialectPostgres:
		q = fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, s.tableName(collection))
	default:
		q = fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE content = VALUES(content), metadata = VALUES(metadata), embedding = VALUES(embedding)`, s.tableName(collection))
	}
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.Text, string(metaJSON), string(embJSON)); err != nil {
		return errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	return nil
}

func (s *SQL) Store(ctx context.Context, collection string, doc Document) error {
	return s.upsertOne(ctx, collection, doc)
}

func (s *SQL) Upsert(ctx context.Context, collection string, doc Document) error {
	return s.upsertOne(ctx, collection, doc)
}

func (s *SQL) Delete(ctx context.Context, collection string, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.tableName(collection)+` WHERE id = `+s.placeholder(1), id)
	if err != nil {
		return errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	return nil
}

// DeleteByFilter loads every row, evaluates filter in Go, and deletes the
// matching ids; relational metadata predicates vary too much across
// dialects to express generically in SQL here.
func (s *SQL) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	docs, err := s.scanAll(ctx, collection)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if filter.matches(d.Metadata) {
			if err := s.Delete(ctx, collection, d.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQL) GetByID(ctx context.Context, collection string, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content, metadata, embedding FROM `+s.tableName(collection)+` WHERE id = `+s.placeholder(1), id)
	return s.scanDocument(row)
}

func (s *SQL) scanDocument(row *sql.Row) (*Document, error) {
	var id, content, metaRaw, embRaw string
	if err := row.Scan(&id, &content, &metaRaw, &embRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	doc := &Document{ID: id, Text: content}
	json.Unmarshal([]byte(metaRaw), &doc.Metadata)
	json.Unmarshal([]byte(embRaw), &doc.Embedding)
	return doc, nil
}

func (s *SQL) scanAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM `+s.tableName(collection))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "vector-sql", err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var id, content, metaRaw, embRaw string
		if err := rows.Scan(&id, &content, &metaRaw, &embRaw); err != nil {
			return nil, errs.Wrap(errs.ProviderError, "vector-sql", err)
		}
		doc := Document{ID: id, Text: content}
		json.Unmarshal([]byte(metaRaw), &doc.Metadata)
		json.Unmarshal([]byte(embRaw), &doc.Embedding)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQL) Search(ctx context.Context, collection, query string, topK int, filter Filter, minScore float64) ([]SearchResult, error) {
	emb, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.SearchByVector(ctx, collection, emb, topK, filter)
	if err != nil {
		return nil, err
	}
	var filtered []SearchResult
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (s *SQL) SearchByVector(ctx context.Context, collection string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	docs, err := s.scanAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	for _, d := range docs {
		if len(filter) > 0 && !filter.matches(d.Metadata) {
			continue
		}
		results = append(results, SearchResult{Document: d, Score: CosineSimilarity(embedding, d.Embedding)})
	}
	sortByScoreDesc(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
