package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	nodePropertiesQuery = `CALL db.schema.nodeTypeProperties()
YIELD nodeLabels, propertyName, propertyTypes
RETURN nodeLabels, propertyName, propertyTypes`

	relPropertiesQuery = `CALL db.schema.relTypeProperties()
YIELD relType, propertyName, propertyTypes
RETURN relType, propertyName, propertyTypes`

	patternsQuery = `MATCH (a)-[r]->(b)
RETURN DISTINCT labels(a)[0] AS start, type(r) AS rel, labels(b)[0] AS end
LIMIT 200`
)

type propertySet map[string]map[string]string

func (p propertySet) add(owner, name, typ string) {
	if owner == "" {
		return
	}
	if p[owner] == nil {
		p[owner] = map[string]string{}
	}
	if name != "" {
		p[owner][name] = typ
	}
}

// buildSchema renders the graph schema in the form the model is prompted
// with:
//
//	Node properties:
//	Person {age: INTEGER, name: STRING}
//	Relationship properties:
//	WORKS_AT {since: INTEGER}
//	The relationships:
//	(:Person)-[:WORKS_AT]->(:Company)
func buildSchema(ctx context.Context, query queryFunc) (string, error) {
	nodeRows, err := query(ctx, nodePropertiesQuery, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read node properties: %w", err)
	}
	relRows, err := query(ctx, relPropertiesQuery, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read relationship properties: %w", err)
	}
	patternRows, err := query(ctx, patternsQuery, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read relationship patterns: %w", err)
	}

	nodes := propertySet{}
	for _, row := range nodeRows {
		typ := firstOr(asStrings(row["propertyTypes"]), "ANY")
		for _, label := range asStrings(row["nodeLabels"]) {
			nodes.add(label, asString(row["propertyName"]), typ)
		}
	}

	rels := propertySet{}
	for _, row := range relRows {
		typ := firstOr(asStrings(row["propertyTypes"]), "ANY")
		rels.add(trimTypeName(asString(row["relType"])), asString(row["propertyName"]), typ)
	}

	var patterns []string
	for _, row := range patternRows {
		start, rel, end := asString(row["start"]), asString(row["rel"]), asString(row["end"])
		if start == "" || rel == "" || end == "" {
			continue
		}
		patterns = append(patterns, fmt.Sprintf("(:%s)-[:%s]->(:%s)", start, rel, end))
	}
	sort.Strings(patterns)

	if len(nodes) == 0 && len(rels) == 0 && len(patterns) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Node properties:\n")
	writeProperties(&b, nodes)
	b.WriteString("Relationship properties:\n")
	writeProperties(&b, rels)
	b.WriteString("The relationships:\n")
	for _, p := range patterns {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeProperties(b *strings.Builder, set propertySet) {
	owners := make([]string, 0, len(set))
	for owner := range set {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		props := set[owner]
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := make([]string, len(names))
		for i, name := range names {
			fields[i] = fmt.Sprintf("%s: %s", name, normalizeType(props[name]))
		}
		fmt.Fprintf(b, "%s {%s}\n", owner, strings.Join(fields, ", "))
	}
}

// trimTypeName turns ":`WORKS_AT`" into "WORKS_AT".
func trimTypeName(s string) string {
	s = strings.TrimPrefix(s, ":")
	return strings.Trim(s, "`")
}

// normalizeType maps procedure type names such as "String" or "Long" onto
// Cypher type names.
func normalizeType(t string) string {
	switch strings.ToLower(t) {
	case "string":
		return "STRING"
	case "long", "integer":
		return "INTEGER"
	case "double", "float":
		return "FLOAT"
	case "boolean":
		return "BOOLEAN"
	case "stringarray":
		return "LIST<STRING>"
	case "longarray":
		return "LIST<INTEGER>"
	case "doublearray":
		return "LIST<FLOAT>"
	case "date":
		return "DATE"
	case "datetime", "zoneddatetime":
		return "DATE_TIME"
	case "localdatetime":
		return "LOCAL_DATE_TIME"
	case "point":
		return "POINT"
	default:
		return strings.ToUpper(t)
	}
}

func firstOr(values []string, def string) string {
	if len(values) == 0 || values[0] == "" {
		return def
	}
	return values[0]
}
