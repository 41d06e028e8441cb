package graph

import (
	"context"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// DefaultExportLimit bounds the number of nodes exported for indexing.
const DefaultExportLimit = 1000

const exportQuery = `MATCH (n)
WHERE n.name IS NOT NULL OR n.description IS NOT NULL
RETURN
	labels(n)[0] AS label,
	coalesce(toString(n.name), '') AS name,
	coalesce(toString(n.description), '') AS description,
	elementId(n) AS entity_id
LIMIT $limit`

func exportEntities(ctx context.Context, query queryFunc, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = DefaultExportLimit
	}

	rows, err := query(ctx, exportQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to export entities: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		doc, ok := entityDocument(row)
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// entityDocument renders one exported node as "<label>: <name> - <description>".
func entityDocument(row map[string]any) (domain.Document, bool) {
	id := asString(row["entity_id"])
	if id == "" {
		return domain.Document{}, false
	}

	label := asString(row["label"])
	name := asString(row["name"])
	description := asString(row["description"])

	return domain.Document{
		ID:   id,
		Text: fmt.Sprintf("%s: %s - %s", label, name, description),
		Metadata: map[string]any{
			domain.MetaLabel:    label,
			domain.MetaEntityID: id,
			domain.MetaName:     name,
		},
	}, true
}
