// Package security implements the security post-processor (spec.md §4.8): a
// pure field-masking pass applied to query results after execution. It is
// grounded on the original Python implementation's query_service.py
// (_apply_field_masking), including its acknowledged gap: masks are matched
// by bare field name across every row of every result set, with no binding
// back to the table or collection the mask was declared against (spec.md's
// Open Questions call this out explicitly rather than silently "fixing" it).
package security

import "github.com/dbrevel/queryplane/pkg/model"

// MaskedValue is the literal replacement for any masked field, matching
// query_service.py's "***MASKED***" constant.
const MaskedValue = "***MASKED***"

// Mask replaces masked fields in every row with MaskedValue. masks maps a
// table/collection name to its list of masked field names, but - matching
// the original's behavior - every field name across the union of all
// tables' masks is treated as masked in every row, regardless of which
// table that row actually came from.
func Mask(rows []model.Record, masks map[string][]string) []model.Record {
	if len(masks) == 0 || len(rows) == 0 {
		return rows
	}

	fields := unionFields(masks)
	out := make([]model.Record, len(rows))
	for i, row := range rows {
		out[i] = maskRow(row, fields)
	}
	return out
}

func unionFields(masks map[string][]string) map[string]struct{} {
	fields := make(map[string]struct{})
	for _, names := range masks {
		for _, name := range names {
			fields[name] = struct{}{}
		}
	}
	return fields
}

func maskRow(row model.Record, fields map[string]struct{}) model.Record {
	masked := make(model.Record, len(row))
	for k, v := range row {
		if _, ok := fields[k]; ok {
			masked[k] = MaskedValue
		} else {
			masked[k] = v
		}
	}
	return masked
}
