package rewrite

import (
	"sort"

	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/parser"
)

// PostTransform rewrites every placeholder span in the serialized text to
// the dialect-native form. Spans are rewritten in reverse byte order so
// earlier positions stay valid while later ones change length. The tree
// must be the parse of exactly this text.
func PostTransform(sql string, stmt *parser.SelectStmt, d *dialect.Dialect) string {
	var placeholders []*parser.Placeholder
	parser.WalkPlaceholders(stmt, func(ph *parser.Placeholder) {
		placeholders = append(placeholders, ph)
	})

	sort.Slice(placeholders, func(i, j int) bool {
		return placeholders[i].Span.Start.Offset > placeholders[j].Span.Start.Offset
	})

	for _, ph := range placeholders {
		start, end := ph.Span.Start.Offset, ph.Span.End.Offset
		if start < 0 || end > len(sql) || start >= end {
			continue
		}
		sql = sql[:start] + d.Placeholder(ph.Name) + sql[end:]
	}
	return sql
}
