package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record Helpers
// ============================================================================

// RecordString returns the string stored under key, or "" when absent
func RecordString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

// RecordInt64 returns the integer stored under key, or 0 when absent
func RecordInt64(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

// RecordBool returns the boolean stored under key, or false when absent
func RecordBool(record *neo4j.Record, key string) bool {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}

// RecordTime returns the datetime stored under key. Neo4j datetime values
// come back as time.Time.
func RecordTime(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	if t, ok := val.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// RecordStrings returns the list of strings stored under key
func RecordStrings(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// RecordNodeProps returns the properties of the node stored under key.
// Plain maps are accepted too, for queries that project properties.
func RecordNodeProps(record *neo4j.Record, key string) (map[string]any, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil, false
	}
	switch v := val.(type) {
	case neo4j.Node:
		return v.Props, true
	case *neo4j.Node:
		return v.Props, true
	case map[string]any:
		return v, true
	}
	return nil, false
}

// RecordNodeList returns the properties of each node in the list stored
// under key, as produced by collect(n). Entries that are not nodes are skipped.
func RecordNodeList(record *neo4j.Record, key string) []map[string]any {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []map[string]any{}
	}
	slice, ok := val.([]any)
	if !ok {
		return []map[string]any{}
	}
	result := make([]map[string]any, 0, len(slice))
	for _, v := range slice {
		switch n := v.(type) {
		case neo4j.Node:
			result = append(result, n.Props)
		case *neo4j.Node:
			result = append(result, n.Props)
		case map[string]any:
			result = append(result, n)
		}
	}
	return result
}
