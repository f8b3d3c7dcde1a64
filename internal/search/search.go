// Package search indexes letters for the archive search endpoint.
package search

import (
	"context"
	"strings"

	"golang.org/x/net/html"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	Status         string `json:"status"`
	DecisionTypeID string `json:"decisionTypeId"`
}

// Query describes a search request. Empty filters match everything.
type Query struct {
	Text           string
	Statuses       []string
	DecisionTypeID string
	AuthorID       string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer pushes letters into a search index.
type Indexer interface {
	IndexLetters(letters []LetterRecord) error
	DeleteLetter(id string) error
	Healthy() bool
}

// LetterRecord is the data we index for a letter.
type LetterRecord struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Rationale      string `json:"rationale"`
	Status         string `json:"status"`
	DecisionTypeID string `json:"decisionTypeId"`
	AuthorID       string `json:"authorId"`
	Sector         string `json:"sector"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// PlainText flattens rich-text HTML into whitespace-separated words.
func PlainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkipped(string(name)) {
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkipped(string(name)) && skip > 0 {
				skip--
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}

func isSkipped(tag string) bool {
	return tag == "script" || tag == "style"
}
