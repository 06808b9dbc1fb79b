package milvus

import (
	"context"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmatching "github.com/esglens/esglens/internal/application/matching"
	"github.com/esglens/esglens/pkg/errors"
)

// The milvus index must satisfy the matcher's index contract.
var _ appmatching.ParagraphIndex = (*Index)(nil)

type fakeMilvus struct {
	client.Client // embed interface

	hasCollection   bool
	created         *entity.Schema
	indexedField    string
	loaded          bool
	deletedExprs    []string
	insertCalls     int
	insertedColumns []entity.Column
	flushed         bool
	searchResults   []client.SearchResult
	searchExpr      string
	searchTopK      int
	searchMetric    entity.MetricType
	searchErr       error
}

func (f *fakeMilvus) HasCollection(_ context.Context, _ string) (bool, error) {
	return f.hasCollection, nil
}

func (f *fakeMilvus) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	f.created = schema
	return nil
}

func (f *fakeMilvus) CreateIndex(_ context.Context, _, fieldName string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	f.indexedField = fieldName
	return nil
}

func (f *fakeMilvus) LoadCollection(_ context.Context, _ string, _ bool, _ ...client.LoadCollectionOption) error {
	f.loaded = true
	return nil
}

func (f *fakeMilvus) Delete(_ context.Context, _, _ string, expr string) error {
	f.deletedExprs = append(f.deletedExprs, expr)
	return nil
}

func (f *fakeMilvus) Insert(_ context.Context, _, _ string, columns ...entity.Column) (entity.Column, error) {
	f.insertCalls++
	f.insertedColumns = columns
	return entity.NewColumnInt64("id", []int64{1}), nil
}

func (f *fakeMilvus) Flush(_ context.Context, _ string, _ bool, _ ...client.FlushOption) error {
	f.flushed = true
	return nil
}

func (f *fakeMilvus) Search(_ context.Context, _ string, _ []string, expr string, _ []string,
	_ []entity.Vector, _ string, metric entity.MetricType, topK int, _ entity.SearchParam,
	_ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchExpr = expr
	f.searchTopK = topK
	f.searchMetric = metric
	return f.searchResults, f.searchErr
}

func (f *fakeMilvus) Close() error { return nil }

func testIndex(f *fakeMilvus) *Index {
	return newWithClient(f, Config{Dim: 2}, nil)
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	f := &fakeMilvus{hasCollection: false}
	idx := testIndex(f)

	require.NoError(t, idx.ensureCollection(context.Background()))
	require.NotNil(t, f.created)
	assert.Equal(t, defaultCollection, f.created.CollectionName)
	assert.Equal(t, vectorField, f.indexedField)
	assert.True(t, f.loaded)
}

func TestEnsureCollectionSkipsWhenPresent(t *testing.T) {
	f := &fakeMilvus{hasCollection: true}
	idx := testIndex(f)

	require.NoError(t, idx.ensureCollection(context.Background()))
	assert.Nil(t, f.created)
	assert.True(t, f.loaded)
}

func TestIndexReplacesPreviousParagraphs(t *testing.T) {
	f := &fakeMilvus{}
	idx := testIndex(f)

	paras := []appmatching.IndexedParagraph{
		{ID: "rep:0", Page: 1, Ordinal: 0, Text: "first", Vector: []float32{1, 0}},
		{ID: "rep:1", Page: 2, Ordinal: 1, Text: "second", Vector: []float32{0, 1}},
	}
	require.NoError(t, idx.Index(context.Background(), "rep", paras))

	require.Equal(t, []string{`report_id == "rep"`}, f.deletedExprs)
	require.Len(t, f.insertedColumns, 6)
	assert.Equal(t, "report_id", f.insertedColumns[0].Name())
	assert.Equal(t, vectorField, f.insertedColumns[5].Name())
	assert.True(t, f.flushed)
}

func TestIndexBatchesInserts(t *testing.T) {
	f := &fakeMilvus{}
	idx := newWithClient(f, Config{Dim: 2, InsertBatchSize: 2}, nil)

	paras := make([]appmatching.IndexedParagraph, 5)
	for i := range paras {
		paras[i] = appmatching.IndexedParagraph{
			ID:      fmt.Sprintf("rep:%d", i),
			Ordinal: i,
			Text:    "text",
			Vector:  []float32{1, 0},
		}
	}
	require.NoError(t, idx.Index(context.Background(), "rep", paras))

	assert.Equal(t, 3, f.insertCalls)
	require.Len(t, f.insertedColumns, 6)
	assert.Equal(t, 1, f.insertedColumns[0].Len(), "last batch carries the remainder")
	assert.True(t, f.flushed)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := "emissions in tonnes CO₂"
	cut := truncate(s, len(s)-1)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "emissions in tonnes CO", cut)
	assert.Equal(t, s, truncate(s, len(s)))
}

func TestSearchConvertsAndSortsHits(t *testing.T) {
	fields := client.ResultSet{
		entity.NewColumnVarChar("paragraph_id", []string{"rep:1", "rep:0", "rep:2"}),
		entity.NewColumnInt64("page", []int64{4, 3, 5}),
		entity.NewColumnInt64("ordinal", []int64{1, 0, 2}),
		entity.NewColumnVarChar("text", []string{"one", "zero", "two"}),
	}
	f := &fakeMilvus{searchResults: []client.SearchResult{{
		ResultCount: 3,
		Scores:      []float32{0.5, 0.9, 0.9},
		Fields:      fields,
	}}}
	idx := testIndex(f)

	got, err := idx.Search(context.Background(), "rep", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, `report_id == "rep"`, f.searchExpr)
	assert.Equal(t, 5, f.searchTopK)
	assert.Equal(t, entity.IP, f.searchMetric)

	require.Len(t, got, 3)
	// score 0.9 twice: ordinal 0 before ordinal 2, then score 0.5.
	assert.Equal(t, "rep:0", got[0].ParagraphID)
	assert.Equal(t, "rep:2", got[1].ParagraphID)
	assert.Equal(t, "rep:1", got[2].ParagraphID)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Equal(t, 3, got[0].Page)
}

func TestSearchErrorWrapsIndexUnavailable(t *testing.T) {
	f := &fakeMilvus{searchErr: assert.AnError}
	idx := testIndex(f)

	_, err := idx.Search(context.Background(), "rep", []float32{1, 0}, 5)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexUnavailable))
}

func TestSearchMissingFieldFails(t *testing.T) {
	f := &fakeMilvus{searchResults: []client.SearchResult{{
		ResultCount: 1,
		Scores:      []float32{0.5},
		Fields:      client.ResultSet{entity.NewColumnVarChar("paragraph_id", []string{"rep:0"})},
	}}}
	idx := testIndex(f)

	_, err := idx.Search(context.Background(), "rep", []float32{1, 0}, 5)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIndexUnavailable))
}
