package sqlite

// Schema DDL for all tables. Every statement is idempotent so Attach can
// run it against an existing database file.
const (
	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    is_superuser INTEGER NOT NULL DEFAULT 0,
    permissions TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);`

	createClassifications = `CREATE TABLE IF NOT EXISTS classifications (
    classification_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);`

	createProducts = `CREATE TABLE IF NOT EXISTS products (
    product_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    classification_id TEXT REFERENCES classifications(classification_id),
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);`

	createVersions = `CREATE TABLE IF NOT EXISTS versions (
    version_id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
    value TEXT NOT NULL,
    UNIQUE (product_id, value)
);`

	createBuilds = `CREATE TABLE IF NOT EXISTS builds (
    build_id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    UNIQUE (product_id, name)
);`

	createComponents = `CREATE TABLE IF NOT EXISTS components (
    component_id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    initial_owner_id TEXT REFERENCES users(user_id),
    description TEXT NOT NULL DEFAULT '',
    UNIQUE (product_id, name)
);`

	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    category_id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    UNIQUE (product_id, name)
);`

	createPlanTypes = `CREATE TABLE IF NOT EXISTS plan_types (
    plan_type_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);`

	createPlans = `CREATE TABLE IF NOT EXISTS plans (
    plan_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    product_id TEXT NOT NULL REFERENCES products(product_id),
    product_version_id TEXT NOT NULL REFERENCES versions(version_id),
    type_id TEXT NOT NULL REFERENCES plan_types(plan_type_id),
    author_id TEXT NOT NULL REFERENCES users(user_id),
    owner_id TEXT REFERENCES users(user_id),
    parent_id TEXT REFERENCES plans(plan_id) ON DELETE SET NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    extra_link TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);`

	createPlanTexts = `CREATE TABLE IF NOT EXISTS plan_texts (
    plan_text_id TEXT PRIMARY KEY,
    plan_id TEXT NOT NULL REFERENCES plans(plan_id) ON DELETE CASCADE,
    version INTEGER NOT NULL,
    author_id TEXT NOT NULL REFERENCES users(user_id),
    text TEXT NOT NULL,
    checksum TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (plan_id, version)
);`

	createCases = `CREATE TABLE IF NOT EXISTS cases (
    case_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    status TEXT NOT NULL,
    category_id TEXT NOT NULL REFERENCES categories(category_id),
    priority TEXT NOT NULL,
    author_id TEXT NOT NULL REFERENCES users(user_id),
    default_tester_id TEXT REFERENCES users(user_id),
    reviewer_id TEXT REFERENCES users(user_id),
    is_automated INTEGER NOT NULL DEFAULT 0,
    is_automated_proposed INTEGER NOT NULL DEFAULT 0,
    script TEXT NOT NULL DEFAULT '',
    arguments TEXT NOT NULL DEFAULT '',
    extra_link TEXT NOT NULL DEFAULT '',
    requirement TEXT NOT NULL DEFAULT '',
    alias TEXT NOT NULL DEFAULT '',
    estimated_time INTEGER NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);`

	createCaseTexts = `CREATE TABLE IF NOT EXISTS case_texts (
    case_text_id TEXT PRIMARY KEY,
    case_id TEXT NOT NULL REFERENCES cases(case_id) ON DELETE CASCADE,
    version INTEGER NOT NULL,
    author_id TEXT NOT NULL REFERENCES users(user_id),
    action TEXT NOT NULL DEFAULT '',
    effect TEXT NOT NULL DEFAULT '',
    setup TEXT NOT NULL DEFAULT '',
    breakdown TEXT NOT NULL DEFAULT '',
    action_checksum TEXT NOT NULL,
    effect_checksum TEXT NOT NULL,
    setup_checksum TEXT NOT NULL,
    breakdown_checksum TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (case_id, version)
);`

	createRuns = `CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    plan_id TEXT NOT NULL REFERENCES plans(plan_id),
    build_id TEXT NOT NULL REFERENCES builds(build_id),
    product_version_id TEXT NOT NULL REFERENCES versions(version_id),
    manager_id TEXT NOT NULL REFERENCES users(user_id),
    default_tester_id TEXT REFERENCES users(user_id),
    start_date TEXT NOT NULL,
    stop_date TEXT,
    estimated_time INTEGER NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    auto_update_run_status INTEGER NOT NULL DEFAULT 0
);`

	createCaseRuns = `CREATE TABLE IF NOT EXISTS case_runs (
    case_run_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    case_id TEXT NOT NULL REFERENCES cases(case_id),
    case_text_version INTEGER NOT NULL DEFAULT 0,
    assignee_id TEXT REFERENCES users(user_id),
    tested_by_id TEXT REFERENCES users(user_id),
    status TEXT NOT NULL,
    build_id TEXT NOT NULL REFERENCES builds(build_id),
    environment_id INTEGER NOT NULL DEFAULT 0,
    sort_key INTEGER NOT NULL DEFAULT 0,
    close_date TEXT,
    notes TEXT NOT NULL DEFAULT '',
    UNIQUE (run_id, case_id, build_id, environment_id)
);`

	createTags = `CREATE TABLE IF NOT EXISTS tags (
    tag_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);`

	createEnvGroups = `CREATE TABLE IF NOT EXISTS env_groups (
    env_group_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    manager_id TEXT REFERENCES users(user_id),
    is_active INTEGER NOT NULL DEFAULT 1
);`

	createEnvProperties = `CREATE TABLE IF NOT EXISTS env_properties (
    env_property_id TEXT PRIMARY KEY,
    env_group_id TEXT NOT NULL REFERENCES env_groups(env_group_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    UNIQUE (env_group_id, name)
);`

	createEnvValues = `CREATE TABLE IF NOT EXISTS env_values (
    env_value_id TEXT PRIMARY KEY,
    env_property_id TEXT NOT NULL REFERENCES env_properties(env_property_id) ON DELETE CASCADE,
    value TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    UNIQUE (env_property_id, value)
);`

	createTrackers = `CREATE TABLE IF NOT EXISTS issue_trackers (
    tracker_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    service_url TEXT NOT NULL,
    api_url TEXT NOT NULL DEFAULT '',
    issue_report_endpoint TEXT NOT NULL DEFAULT '',
    issue_url_fmt TEXT NOT NULL,
    validate_regex TEXT NOT NULL DEFAULT '',
    allow_add_case_to_issue INTEGER NOT NULL DEFAULT 0,
    credential_type TEXT NOT NULL,
    class_path TEXT NOT NULL DEFAULT 'generic',
    issue_report_params TEXT NOT NULL DEFAULT '',
    issue_report_templ TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL DEFAULT '',
    token TEXT NOT NULL DEFAULT '',
    secret_file TEXT NOT NULL DEFAULT ''
);`

	createIssues = `CREATE TABLE IF NOT EXISTS issues (
    issue_id TEXT PRIMARY KEY,
    issue_key TEXT NOT NULL,
    tracker_id TEXT NOT NULL REFERENCES issue_trackers(tracker_id) ON DELETE CASCADE,
    case_id TEXT NOT NULL REFERENCES cases(case_id) ON DELETE CASCADE,
    case_run_id TEXT REFERENCES case_runs(case_run_id) ON DELETE CASCADE,
    summary TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);`

	createComments = `CREATE TABLE IF NOT EXISTS comments (
    comment_id TEXT PRIMARY KEY,
    object_type TEXT NOT NULL,
    object_id TEXT NOT NULL,
    user_id TEXT NOT NULL REFERENCES users(user_id),
    text TEXT NOT NULL,
    submitted_at TEXT NOT NULL,
    is_removed INTEGER NOT NULL DEFAULT 0
);`

	createLinkReferences = `CREATE TABLE IF NOT EXISTS link_references (
    link_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    object_type TEXT NOT NULL,
    object_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createLinks = `CREATE TABLE IF NOT EXISTS links (
    link_id TEXT PRIMARY KEY,
    link_type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    sort_key INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxLinksUnique        = `CREATE UNIQUE INDEX IF NOT EXISTS idx_links_unique ON links(link_type, from_id, to_id);`
	idxLinksTypeFrom      = `CREATE INDEX IF NOT EXISTS idx_links_type_from ON links(link_type, from_id);`
	idxLinksTypeTo        = `CREATE INDEX IF NOT EXISTS idx_links_type_to ON links(link_type, to_id);`
	idxCasesStatus        = `CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);`
	idxCaseRunsRun        = `CREATE INDEX IF NOT EXISTS idx_case_runs_run ON case_runs(run_id);`
	idxCaseRunsAssignee   = `CREATE INDEX IF NOT EXISTS idx_case_runs_assignee ON case_runs(assignee_id);`
	idxRunsPlan           = `CREATE INDEX IF NOT EXISTS idx_runs_plan ON runs(plan_id);`
	idxCommentsObject     = `CREATE INDEX IF NOT EXISTS idx_comments_object ON comments(object_type, object_id);`
	idxLinkRefsObject     = `CREATE INDEX IF NOT EXISTS idx_link_references_object ON link_references(object_type, object_id);`
	idxIssuesUnique       = `CREATE UNIQUE INDEX IF NOT EXISTS idx_issues_unique ON issues(tracker_id, issue_key, case_id, IFNULL(case_run_id, ''));`
	idxCaseTextsCase      = `CREATE INDEX IF NOT EXISTS idx_case_texts_case ON case_texts(case_id, version);`
	idxPlanTextsPlan      = `CREATE INDEX IF NOT EXISTS idx_plan_texts_plan ON plan_texts(plan_id, version);`
	idxPlansProductActive = `CREATE INDEX IF NOT EXISTS idx_plans_product ON plans(product_id, is_active);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createUsers,
	createClassifications,
	createProducts,
	createVersions,
	createBuilds,
	createComponents,
	createCategories,
	createPlanTypes,
	createPlans,
	createPlanTexts,
	createCases,
	createCaseTexts,
	createRuns,
	createCaseRuns,
	createTags,
	createEnvGroups,
	createEnvProperties,
	createEnvValues,
	createTrackers,
	createIssues,
	createComments,
	createLinkReferences,
	createLinks,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxLinksUnique,
	idxLinksTypeFrom,
	idxLinksTypeTo,
	idxCasesStatus,
	idxCaseRunsRun,
	idxCaseRunsAssignee,
	idxRunsPlan,
	idxCommentsObject,
	idxLinkRefsObject,
	idxIssuesUnique,
	idxCaseTextsCase,
	idxPlanTextsPlan,
	idxPlansProductActive,
}
