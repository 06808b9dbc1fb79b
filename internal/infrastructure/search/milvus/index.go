// Package milvus backs the matcher's ParagraphIndex with a Milvus
// collection. The brute-force in-memory index is exact and sufficient at
// single-report scale; this backend serves deployments that keep very large
// paragraph sets searchable across runs. Vectors are normalized upstream, so
// inner product is the cosine similarity.
package milvus

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	appmatching "github.com/esglens/esglens/internal/application/matching"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Config holds the Milvus connection and collection settings.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Collection name (default "esglens_paragraphs").
	Collection string `mapstructure:"collection"`

	// Dim is the embedding dimension the collection is created with
	// (default 768, the nomic-embed-text dimension).
	Dim int `mapstructure:"dim"`

	// Timeout bounds each backend operation (default 10s).
	Timeout time.Duration `mapstructure:"timeout"`

	// InsertBatchSize caps how many paragraphs one Insert call carries
	// (default 500); gRPC message limits reject oversized inserts.
	InsertBatchSize int `mapstructure:"insert_batch_size"`
}

const (
	defaultCollection  = "esglens_paragraphs"
	defaultDim         = 768
	defaultTimeout     = 10 * time.Second
	defaultInsertBatch = 500

	vectorField = "vector"
	maxTopK     = 16384
	nlist       = 128
	nprobe      = 16
	maxTextLen  = 8192
)

// Index is a Milvus-backed ParagraphIndex.
type Index struct {
	cli         client.Client
	collection  string
	dim         int
	timeout     time.Duration
	insertBatch int
	logger      logging.Logger
}

// NewIndex connects to Milvus and ensures the paragraph collection exists,
// is indexed, and is loaded.
func NewIndex(ctx context.Context, cfg Config, logger logging.Logger) (*Index, error) {
	cli, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "connect to milvus").
			WithDetail("addr=" + cfg.Addr)
	}

	idx := newWithClient(cli, cfg, logger)
	if err := idx.ensureCollection(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return idx, nil
}

// newWithClient wires an Index around an existing client; tests inject fakes
// through it.
func newWithClient(cli client.Client, cfg Config, logger logging.Logger) *Index {
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.Dim == 0 {
		cfg.Dim = defaultDim
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = defaultInsertBatch
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Index{
		cli:         cli,
		collection:  cfg.Collection,
		dim:         cfg.Dim,
		timeout:     cfg.Timeout,
		insertBatch: cfg.InsertBatchSize,
		logger:      logger.Named("milvus-index"),
	}
}

func (x *Index) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	has, err := x.cli.HasCollection(ctx, x.collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "check paragraph collection")
	}
	if !has {
		schema := entity.NewSchema().
			WithName(x.collection).
			WithDescription("report paragraphs with embedding vectors").
			WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
			WithField(entity.NewField().WithName("report_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
			WithField(entity.NewField().WithName("paragraph_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
			WithField(entity.NewField().WithName("page").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("ordinal").WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLen)).
			WithField(entity.NewField().WithName(vectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(x.dim)))
		if err := x.cli.CreateCollection(ctx, schema, 1); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "create paragraph collection")
		}

		ivf, err := entity.NewIndexIvfFlat(entity.IP, nlist)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "build vector index definition")
		}
		if err := x.cli.CreateIndex(ctx, x.collection, vectorField, ivf, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "create vector index")
		}
	}

	if err := x.cli.LoadCollection(ctx, x.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "load paragraph collection")
	}
	return nil
}

func reportExpr(reportID string) string {
	return fmt.Sprintf(`report_id == "%s"`, reportID)
}

// Index replaces the report's paragraphs in the collection.
func (x *Index) Index(ctx context.Context, reportID string, paras []appmatching.IndexedParagraph) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	if err := x.cli.Delete(ctx, x.collection, "", reportExpr(reportID)); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "clear previous paragraphs").
			WithDetail("report_id=" + reportID)
	}
	if len(paras) == 0 {
		return nil
	}

	for start := 0; start < len(paras); start += x.insertBatch {
		end := start + x.insertBatch
		if end > len(paras) {
			end = len(paras)
		}
		batch := paras[start:end]

		reportIDs := make([]string, len(batch))
		paraIDs := make([]string, len(batch))
		pages := make([]int64, len(batch))
		ordinals := make([]int64, len(batch))
		texts := make([]string, len(batch))
		vectors := make([][]float32, len(batch))
		for i, p := range batch {
			reportIDs[i] = reportID
			paraIDs[i] = p.ID
			pages[i] = int64(p.Page)
			ordinals[i] = int64(p.Ordinal)
			texts[i] = truncate(p.Text, maxTextLen)
			vectors[i] = p.Vector
		}

		_, err := x.cli.Insert(ctx, x.collection, "",
			entity.NewColumnVarChar("report_id", reportIDs),
			entity.NewColumnVarChar("paragraph_id", paraIDs),
			entity.NewColumnInt64("page", pages),
			entity.NewColumnInt64("ordinal", ordinals),
			entity.NewColumnVarChar("text", texts),
			entity.NewColumnFloatVector(vectorField, x.dim, vectors),
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "insert paragraphs").
				WithDetail("report_id=" + reportID)
		}
	}

	if err := x.cli.Flush(ctx, x.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "flush paragraph collection")
	}

	x.logger.Debug("report indexed",
		logging.String("report_id", reportID),
		logging.Int("paragraphs", len(paras)),
	)
	return nil
}

// Search returns the report's best-scoring paragraphs for the query vector,
// sorted by descending score with ties broken by ascending ordinal.
func (x *Index) Search(ctx context.Context, reportID string, vector []float32, limit int) ([]matching.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	if limit <= 0 || limit > maxTopK {
		limit = maxTopK
	}
	sp, err := entity.NewIndexIvfFlatSearchParam(nprobe)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "build search params")
	}

	results, err := x.cli.Search(ctx, x.collection, nil, reportExpr(reportID),
		[]string{"paragraph_id", "page", "ordinal", "text"},
		[]entity.Vector{entity.FloatVector(vector)},
		vectorField, entity.IP, limit, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "vector search failed").
			WithDetail("report_id=" + reportID)
	}

	var candidates []matching.Candidate
	for _, res := range results {
		for j := 0; j < res.ResultCount; j++ {
			c, err := hitToCandidate(res, j)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})
	return candidates, nil
}

// Drop deletes the report's paragraphs.
func (x *Index) Drop(ctx context.Context, reportID string) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	if err := x.cli.Delete(ctx, x.collection, "", reportExpr(reportID)); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "drop report paragraphs").
			WithDetail("report_id=" + reportID)
	}
	return nil
}

// Close releases the client connection.
func (x *Index) Close(context.Context) error {
	if err := x.cli.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "close milvus client")
	}
	return nil
}

func hitToCandidate(res client.SearchResult, j int) (matching.Candidate, error) {
	get := func(name string) entity.Column {
		return res.Fields.GetColumn(name)
	}
	for _, name := range []string{"paragraph_id", "page", "ordinal", "text"} {
		if get(name) == nil {
			return matching.Candidate{}, errors.New(errors.ErrCodeIndexUnavailable,
				"search result is missing field "+name)
		}
	}

	paraID, err := get("paragraph_id").GetAsString(j)
	if err != nil {
		return matching.Candidate{}, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "read paragraph_id")
	}
	page, err := get("page").GetAsInt64(j)
	if err != nil {
		return matching.Candidate{}, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "read page")
	}
	ordinal, err := get("ordinal").GetAsInt64(j)
	if err != nil {
		return matching.Candidate{}, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "read ordinal")
	}
	text, err := get("text").GetAsString(j)
	if err != nil {
		return matching.Candidate{}, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "read text")
	}

	return matching.Candidate{
		ParagraphID:   paraID,
		ParagraphText: text,
		Page:          int(page),
		Ordinal:       int(ordinal),
		Score:         float64(res.Scores[j]),
	}, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
