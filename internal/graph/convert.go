package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// toPlain converts driver values into maps, slices and scalars that
// encode cleanly as JSON.
func toPlain(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case neo4j.Node:
		return nodeToMap(t)
	case *neo4j.Node:
		if t == nil {
			return nil
		}
		return nodeToMap(*t)
	case neo4j.Relationship:
		return relationshipToMap(t)
	case *neo4j.Relationship:
		if t == nil {
			return nil
		}
		return relationshipToMap(*t)
	case neo4j.Path:
		nodes := make([]any, len(t.Nodes))
		for i, n := range t.Nodes {
			nodes[i] = nodeToMap(n)
		}
		rels := make([]any, len(t.Relationships))
		for i, r := range t.Relationships {
			rels[i] = relationshipToMap(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toPlain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toPlain(item)
		}
		return out
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case string, bool, int64, float64, []byte:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return t
	}
}

func nodeToMap(n neo4j.Node) map[string]any {
	out := make(map[string]any, len(n.Props)+2)
	for k, v := range n.Props {
		out[k] = toPlain(v)
	}
	out["_id"] = n.ElementId
	out["_labels"] = append([]string(nil), n.Labels...)
	return out
}

func relationshipToMap(r neo4j.Relationship) map[string]any {
	out := make(map[string]any, len(r.Props)+3)
	for k, v := range r.Props {
		out[k] = toPlain(v)
	}
	out["_type"] = r.Type
	out["_start"] = r.StartElementId
	out["_end"] = r.EndElementId
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out
	default:
		return nil
	}
}
