// Package search keeps a bleve full-text index of processed documents.
//
// The index holds title, author, filename and extracted text for each
// document plus its owner as a keyword field; every query is restricted to
// one owner with a term query on that field.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// DefaultLimit is used when Search is called with limit <= 0.
const DefaultLimit = 20

// Hit is one ranked search result.
type Hit struct {
	DocumentID string
	Score      float64
}

// entry is the shape stored in the index.
type entry struct {
	Owner    string `json:"owner"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Index is a bleve-backed document index.
type Index struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query
	// matches the exact word.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, field := range []string{"title", "author", "filename", "content"} {
		docMapping.AddFieldMappingsAt(field, text)
	}
	owner := bleve.NewKeywordFieldMapping()
	owner.IncludeInAll = false
	docMapping.AddFieldMappingsAt("owner", owner)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

// Open creates or reopens an index at path. An empty path keeps the index
// in memory; it then has to be filled with Rebuild after startup.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open search index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{index: idx}, nil
}

// IndexDocument adds or replaces doc. Unprocessed documents are removed
// instead, since they have nothing worth searching yet.
func (i *Index) IndexDocument(doc *models.Document) error {
	if !doc.IsProcessed {
		return i.DeleteDocument(doc.ID)
	}
	return i.index.Index(doc.ID, entry{
		Owner:    doc.OwnerID,
		Title:    doc.Title,
		Author:   doc.Author,
		Filename: doc.OriginalFilename,
		Content:  doc.ContentText,
	})
}

// DeleteDocument removes id from the index. Missing ids are ignored.
func (i *Index) DeleteDocument(id string) error {
	return i.index.Delete(id)
}

// Search returns ownerID's documents matching query, best first.
func (i *Index) Search(ownerID, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	owner := bleve.NewTermQuery(ownerID)
	owner.SetField("owner")

	var fields []blevequery.Query
	for _, field := range []string{"title", "author", "filename", "content"} {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		fields = append(fields, mq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(owner, bleve.NewDisjunctionQuery(fields...)))
	req.Size = limit
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, len(res.Hits))
	for n, h := range res.Hits {
		hits[n] = Hit{DocumentID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// DocumentSource pages through processed documents. *database.DB implements it.
type DocumentSource interface {
	ListProcessedDocuments(ctx context.Context, afterID string, limit int) ([]models.Document, error)
}

// Rebuild indexes every processed document from src and returns the count.
func (i *Index) Rebuild(ctx context.Context, src DocumentSource) (int, error) {
	const pageSize = 200
	total, after := 0, ""
	for {
		docs, err := src.ListProcessedDocuments(ctx, after, pageSize)
		if err != nil {
			return total, fmt.Errorf("failed to load documents for indexing: %w", err)
		}
		if len(docs) == 0 {
			return total, nil
		}

		batch := i.index.NewBatch()
		for n := range docs {
			d := &docs[n]
			if err := batch.Index(d.ID, entry{
				Owner: d.OwnerID, Title: d.Title, Author: d.Author,
				Filename: d.OriginalFilename, Content: d.ContentText,
			}); err != nil {
				return total, fmt.Errorf("failed to index document %s: %w", d.ID, err)
			}
		}
		if err := i.index.Batch(batch); err != nil {
			return total, fmt.Errorf("failed to write index batch: %w", err)
		}
		total += len(docs)
		after = docs[len(docs)-1].ID
	}
}

// DocCount returns the number of indexed documents.
func (i *Index) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}
