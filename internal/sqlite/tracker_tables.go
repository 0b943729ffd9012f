// This file declares the table mappings for issue trackers, issues,
// comments, link references and links.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

var trackersDef = entityDef[types.IssueTracker]{
	table:    types.TableTrackers,
	idColumn: "tracker_id",
	columns: []string{
		"name", "service_url", "api_url", "issue_report_endpoint", "issue_url_fmt",
		"validate_regex", "allow_add_case_to_issue", "credential_type", "class_path",
		"issue_report_params", "issue_report_templ", "username", "password", "token",
		"secret_file",
	},
	filters: map[string]string{
		"tracker_id": "tracker_id",
		"name":       "name",
		"class_path": "class_path",
	},
	orderBy: "name ASC",
	id:      func(t *types.IssueTracker) *string { return &t.TrackerID },
	values: func(t *types.IssueTracker) []any {
		return []any{
			t.Name, t.ServiceURL, t.APIURL, t.IssueReportEndpoint, t.IssueURLFmt,
			t.ValidateRegex, boolToInt(t.AllowAddCaseToIssue), t.CredentialType, t.ClassPath,
			t.IssueReportParams, t.IssueReportTempl, t.Username, t.Password, t.Token,
			t.SecretFile,
		}
	},
	scan: func(s scanner) (*types.IssueTracker, error) {
		var t types.IssueTracker
		if err := s.Scan(
			&t.TrackerID, &t.Name, &t.ServiceURL, &t.APIURL, &t.IssueReportEndpoint,
			&t.IssueURLFmt, &t.ValidateRegex, &t.AllowAddCaseToIssue, &t.CredentialType,
			&t.ClassPath, &t.IssueReportParams, &t.IssueReportTempl, &t.Username,
			&t.Password, &t.Token, &t.SecretFile,
		); err != nil {
			return nil, err
		}
		return &t, nil
	},
	validate: func(t *types.IssueTracker) error {
		if t.Name == "" {
			return types.ErrInvalidName
		}
		if t.ServiceURL == "" || t.IssueURLFmt == "" {
			return types.ErrInvalidURL
		}
		if !types.ValidCredentialType(t.CredentialType) {
			return types.ErrInvalidCredential
		}
		return nil
	},
	create: func(t *types.IssueTracker, _ time.Time) {
		if t.ClassPath == "" {
			t.ClassPath = types.TrackerClassGeneric
		}
		if t.CredentialType == "" {
			t.CredentialType = types.CredentialNoNeed
		}
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type = 'tracker_product' AND from_id = ?",
	},
}

var issuesDef = entityDef[types.Issue]{
	table:    types.TableIssues,
	idColumn: "issue_id",
	columns:  []string{"issue_key", "tracker_id", "case_id", "case_run_id", "summary", "description"},
	filters: map[string]string{
		"issue_key":   "issue_key",
		"tracker_id":  "tracker_id",
		"case_id":     "case_id",
		"case_run_id": "case_run_id",
	},
	orderBy: "issue_key ASC, issue_id ASC",
	id:      func(i *types.Issue) *string { return &i.IssueID },
	values: func(i *types.Issue) []any {
		return []any{i.IssueKey, i.TrackerID, i.CaseID, nullable(i.CaseRunID), i.Summary, i.Description}
	},
	scan: func(s scanner) (*types.Issue, error) {
		var i types.Issue
		var caseRun sql.NullString
		if err := s.Scan(&i.IssueID, &i.IssueKey, &i.TrackerID, &i.CaseID, &caseRun, &i.Summary, &i.Description); err != nil {
			return nil, err
		}
		i.CaseRunID = caseRun.String
		return &i, nil
	},
	validate: func(i *types.Issue) error {
		if i.IssueKey == "" {
			return types.ErrInvalidName
		}
		if i.TrackerID == "" || i.CaseID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
}

var commentsDef = entityDef[types.Comment]{
	table:    types.TableComments,
	idColumn: "comment_id",
	columns:  []string{"object_type", "object_id", "user_id", "text", "submitted_at", "is_removed"},
	filters: map[string]string{
		"object_type": "object_type",
		"object_id":   "object_id",
		"user_id":     "user_id",
		"is_removed":  "is_removed",
	},
	orderBy: "submitted_at ASC, comment_id ASC",
	id:      func(c *types.Comment) *string { return &c.CommentID },
	values: func(c *types.Comment) []any {
		return []any{c.ObjectType, c.ObjectID, c.UserID, c.Text, formatTime(c.SubmittedAt), boolToInt(c.IsRemoved)}
	},
	scan: func(s scanner) (*types.Comment, error) {
		var c types.Comment
		var submitted string
		if err := s.Scan(&c.CommentID, &c.ObjectType, &c.ObjectID, &c.UserID, &c.Text, &submitted, &c.IsRemoved); err != nil {
			return nil, err
		}
		var err error
		if c.SubmittedAt, err = parseTime(submitted); err != nil {
			return nil, err
		}
		return &c, nil
	},
	validate: func(c *types.Comment) error {
		if !types.ValidObjectType(c.ObjectType) {
			return types.ErrInvalidObjectType
		}
		if c.Text == "" {
			return types.ErrInvalidContent
		}
		if c.ObjectID == "" || c.UserID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(c *types.Comment, now time.Time) {
		if c.SubmittedAt.IsZero() {
			c.SubmittedAt = now
		}
	},
}

var linkReferencesDef = entityDef[types.LinkReference]{
	table:    types.TableLinkReferences,
	idColumn: "link_id",
	columns:  []string{"name", "url", "object_type", "object_id", "created_at"},
	filters: map[string]string{
		"object_type": "object_type",
		"object_id":   "object_id",
		"name":        "name",
	},
	orderBy: "created_at ASC, link_id ASC",
	id:      func(l *types.LinkReference) *string { return &l.LinkID },
	values: func(l *types.LinkReference) []any {
		return []any{l.Name, l.URL, l.ObjectType, l.ObjectID, formatTime(l.CreatedAt)}
	},
	scan: func(s scanner) (*types.LinkReference, error) {
		var l types.LinkReference
		var createdAt string
		if err := s.Scan(&l.LinkID, &l.Name, &l.URL, &l.ObjectType, &l.ObjectID, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &l, nil
	},
	validate: func(l *types.LinkReference) error {
		if l.Name == "" {
			return types.ErrInvalidName
		}
		if l.URL == "" {
			return types.ErrInvalidURL
		}
		if !types.ValidObjectType(l.ObjectType) {
			return types.ErrInvalidObjectType
		}
		return nil
	},
	create: func(l *types.LinkReference, now time.Time) {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
	},
}

var linksDef = entityDef[types.Link]{
	table:    types.TableLinks,
	idColumn: "link_id",
	columns:  []string{"link_type", "from_id", "to_id", "sort_key", "created_at"},
	filters: map[string]string{
		"link_type": "link_type",
		"from_id":   "from_id",
		"to_id":     "to_id",
	},
	orderBy: "sort_key ASC, created_at ASC, link_id ASC",
	id:      func(l *types.Link) *string { return &l.LinkID },
	values: func(l *types.Link) []any {
		return []any{l.LinkType, l.FromID, l.ToID, l.SortKey, formatTime(l.CreatedAt)}
	},
	scan: func(s scanner) (*types.Link, error) {
		var l types.Link
		var createdAt string
		if err := s.Scan(&l.LinkID, &l.LinkType, &l.FromID, &l.ToID, &l.SortKey, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &l, nil
	},
	validate: func(l *types.Link) error {
		if !types.ValidLinkType(l.LinkType) {
			return types.ErrInvalidData
		}
		if l.FromID == "" || l.ToID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	create: func(l *types.Link, now time.Time) {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
	},
}
