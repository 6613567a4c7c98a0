package sqlite

import (
	"context"
	"strings"
	"unicode"

	"github.com/skeinhq/skein/internal/types"
)

// sanitizeQuery reduces free-form input to a space-joined sequence of
// alphanumeric terms. FTS query syntax characters (quotes, minus, colon,
// parentheses) are stripped rather than escaped: agents paste arbitrary
// text as queries, and a syntax error from the index helps nobody.
func sanitizeQuery(query string) string {
	var terms []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			terms = append(terms, cur.String())
			cur.Reset()
		}
	}
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return strings.Join(terms, " ")
}

// SearchIssues runs a full-text query over title, description and notes,
// best match first. A query with no indexable terms returns no results
// without touching the index.
func (s *Store) SearchIssues(ctx context.Context, query string) ([]*types.Issue, error) {
	sanitized := sanitizeQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	return s.queryIssues(ctx, `
		SELECT `+issueColumnsPrefixed+` FROM issues i
		JOIN issues_fts f ON f.id = i.id
		WHERE issues_fts MATCH ?
		ORDER BY f.rank, i.id`, sanitized)
}
