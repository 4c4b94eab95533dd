package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// leafClauses are query DSL clauses accepted without further structural checks
// beyond "exactly one key whose value is an object".
var leafClauses = map[string]struct{}{
	"match":               {},
	"match_phrase":        {},
	"match_phrase_prefix": {},
	"match_bool_prefix":   {},
	"multi_match":         {},
	"term":                {},
	"terms":               {},
	"terms_set":           {},
	"range":               {},
	"exists":              {},
	"prefix":              {},
	"wildcard":            {},
	"regexp":              {},
	"fuzzy":               {},
	"ids":                 {},
	"query_string":        {},
	"simple_query_string": {},
	"geo_distance":        {},
	"geo_bounding_box":    {},
	"more_like_this":      {},
	"script":              {},
	"knn":                 {},
}

// clauses with empty-object bodies.
var emptyClauses = map[string]struct{}{
	"match_all":  {},
	"match_none": {},
}

// clauses whose body wraps nested queries under a "query" (or similar) key.
var wrapperClauses = map[string][]string{
	"nested":         {"query"},
	"has_child":      {"query"},
	"has_parent":     {"query"},
	"constant_score": {"filter"},
	"boosting":       {"positive", "negative"},
	"dis_max":        {"queries"},
}

// clauses whose nested query may be omitted; the engine then scores every document.
var optionalWrapperClauses = map[string][]string{
	"function_score": {"query"},
}

var boolOccurrences = []string{"must", "filter", "should", "must_not"}

// ValidateQuery checks that q is a well-formed query DSL clause.
// It checks structure only; field names and values are left to the engine.
func ValidateQuery(q map[string]any) error {
	if err := validateClause(q, "query"); err != nil {
		return Errorf(KindInvalidArgument, "%s", err.Error())
	}
	return nil
}

func validateClause(q map[string]any, path string) error {
	if len(q) == 0 {
		return fmt.Errorf("%s must contain exactly one query clause, got none", path)
	}
	if len(q) != 1 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("%s must contain exactly one query clause, got %s", path, strings.Join(keys, ", "))
	}

	for name, raw := range q {
		clausePath := path + "." + name
		body, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", clausePath)
		}

		if _, ok := emptyClauses[name]; ok {
			return nil
		}
		if _, ok := leafClauses[name]; ok {
			if len(body) == 0 {
				return fmt.Errorf("%s must not be empty", clausePath)
			}
			return nil
		}
		if name == "bool" {
			return validateBool(body, clausePath)
		}
		if keys, ok := wrapperClauses[name]; ok {
			return validateWrapper(body, keys, clausePath)
		}
		if keys, ok := optionalWrapperClauses[name]; ok {
			return validateOptionalWrapper(body, keys, clausePath)
		}
		return fmt.Errorf("%s: unknown query clause %q", path, name)
	}
	return nil
}

// boolOptions are the non-clause keys a bool query accepts.
var boolOptions = map[string]struct{}{
	"minimum_should_match": {},
	"boost":                {},
	"_name":                {},
	"adjust_pure_negative": {},
}

func validateBool(body map[string]any, path string) error {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := boolOptions[k]; ok {
			continue
		}
		if !slices.Contains(boolOccurrences, k) {
			return fmt.Errorf("%s: unknown bool option %q", path, k)
		}
		if err := validateClauseList(body[k], path+"."+k); err != nil {
			return err
		}
	}
	return nil
}

func validateWrapper(body map[string]any, keys []string, path string) error {
	for _, key := range keys {
		raw, ok := body[key]
		if !ok {
			return fmt.Errorf("%s.%s is required", path, key)
		}
		if err := validateClauseList(raw, path+"."+key); err != nil {
			return err
		}
	}
	return nil
}

func validateOptionalWrapper(body map[string]any, keys []string, path string) error {
	for _, key := range keys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		if err := validateClauseList(raw, path+"."+key); err != nil {
			return err
		}
	}
	return nil
}

// validateClauseList accepts either a single clause object or an array of them.
func validateClauseList(raw any, path string) error {
	switch v := raw.(type) {
	case map[string]any:
		return validateClause(v, path)
	case []any:
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("%s[%d] must be an object", path, i)
			}
			if err := validateClause(m, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%s must be an object or an array of objects", path)
	}
}
