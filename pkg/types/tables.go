package types

// Standard table names for Cupboard.GetTable.
const (
	TableUsers           = "users"
	TableClassifications = "classifications"
	TableProducts        = "products"
	TableVersions        = "versions"
	TableBuilds          = "builds"
	TableComponents      = "components"
	TableCategories      = "categories"
	TablePlanTypes       = "plan_types"
	TablePlans           = "plans"
	TablePlanTexts       = "plan_texts"
	TableCases           = "cases"
	TableCaseTexts       = "case_texts"
	TableRuns            = "runs"
	TableCaseRuns        = "case_runs"
	TableTags            = "tags"
	TableEnvGroups       = "env_groups"
	TableEnvProperties   = "env_properties"
	TableEnvValues       = "env_values"
	TableTrackers        = "issue_trackers"
	TableIssues          = "issues"
	TableComments        = "comments"
	TableLinkReferences  = "link_references"
	TableLinks           = "links"
)

// StandardTableNames lists all standard table names in dependency order:
// a table appears after every table it references.
var StandardTableNames = []string{
	TableUsers,
	TableClassifications,
	TableProducts,
	TableVersions,
	TableBuilds,
	TableComponents,
	TableCategories,
	TablePlanTypes,
	TablePlans,
	TablePlanTexts,
	TableCases,
	TableCaseTexts,
	TableRuns,
	TableCaseRuns,
	TableTags,
	TableEnvGroups,
	TableEnvProperties,
	TableEnvValues,
	TableTrackers,
	TableIssues,
	TableComments,
	TableLinkReferences,
	TableLinks,
}
