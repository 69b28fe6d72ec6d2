package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dbrevel/queryplane/pkg/model"
)

// buildPlanPrompt assembles the plan-synthesis prompt, mirroring
// gemini.py's _build_query_prompt: a compact-JSON schema dump, a context
// line naming role/account/permissions/filters/masks, the literal intent,
// a fixed rules block, and minimal JSON templates for both query shapes.
func buildPlanPrompt(intent string, schemas map[string]model.DatabaseSchema, sec model.SecurityContext) string {
	schemaJSON, _ := json.Marshal(schemas)

	var b strings.Builder
	b.WriteString("You are a database query planner. Given the schemas below and a user's ")
	b.WriteString("natural-language intent, produce a JSON query plan.\n\n")
	b.WriteString("SCHEMAS:\n")
	b.Write(schemaJSON)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "CONTEXT: role=%s account=%s permissions=%v\n", sec.Role, sec.AccountID, permissionList(sec))
	if len(sec.RowFilters) > 0 {
		fmt.Fprintf(&b, "ROW FILTERS: %v\n", sec.RowFilters)
	}
	if len(sec.FieldMasks) > 0 {
		fmt.Fprintf(&b, "FIELD MASKS: %v\n", sec.FieldMasks)
	}

	b.WriteString("\nINTENT:\n")
	b.WriteString(intent)
	b.WriteString("\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("- PostgreSQL queries use positional placeholders ($1, $2, ...).\n")
	b.WriteString("- MongoDB queries are aggregation pipelines using $match, $group, etc.\n")
	b.WriteString("- Apply the given row filters and field masks wherever the schema allows.\n")
	b.WriteString("- Never return more than 1000 rows unless the intent explicitly asks for more.\n")
	b.WriteString("- Prefer indexed columns in filters where the schema lists an index.\n")
	b.WriteString("- Every query object must declare: database, query_type, and either sql or query+collection.\n\n")

	b.WriteString("Respond with a minimal example shape like:\n")
	b.WriteString(`{"databases":["postgres"],"queries":[{"database":"postgres","query_type":"sql","query":"SELECT ...","parameters":[]}]}`)
	b.WriteString("\n")
	b.WriteString(`{"databases":["mongodb"],"queries":[{"database":"mongodb","query_type":"mongodb","collection":"orders","query":[{"$match":{}}]}]}`)
	b.WriteString("\n\n")
	b.WriteString("CRITICAL: return ONLY the JSON object, with no surrounding prose.\n")

	return b.String()
}

// buildValidationPrompt assembles the fixed security-review prompt,
// mirroring gemini.py's validate_query: checks injection, dangerous
// operations, performance, and schema-mismatch, expecting a JSON
// {safe, issues, severity, suggestions, estimated_cost} response.
func buildValidationPrompt(query model.DatabaseQuery, schema model.DatabaseSchema) string {
	schemaJSON, _ := json.Marshal(schema)
	queryJSON, _ := json.Marshal(query)

	var b strings.Builder
	b.WriteString("You are a database security reviewer. Examine the query below against its ")
	b.WriteString("schema and report whether it is safe to execute.\n\n")
	b.WriteString("SCHEMA:\n")
	b.Write(schemaJSON)
	b.WriteString("\n\nQUERY:\n")
	b.Write(queryJSON)
	b.WriteString("\n\n")
	b.WriteString("Check for: SQL/NoSQL injection, dangerous operations (DROP, DELETE without a filter, ")
	b.WriteString("$where with arbitrary code), performance risk (missing index, unbounded scan), and schema mismatch.\n\n")
	b.WriteString(`Respond with ONLY JSON: {"safe":bool,"issues":[string],"severity":"low"|"medium"|"high","suggestions":[string],"estimated_cost":string}` + "\n")

	return b.String()
}

func permissionList(sec model.SecurityContext) []string {
	perms := make([]string, 0, len(sec.Permissions))
	for p := range sec.Permissions {
		perms = append(perms, p)
	}
	return perms
}
