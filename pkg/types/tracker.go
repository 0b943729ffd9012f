package types

// Credential types for issue trackers.
const (
	CredentialNoNeed  = "NoNeed"
	CredentialUserPwd = "UserPwd"
	CredentialToken   = "Token"
)

// Tracker service classes.
const (
	TrackerClassGeneric  = "generic"
	TrackerClassBugzilla = "bugzilla"
	TrackerClassJIRA     = "jira"
)

// ValidCredentialType reports whether t is a known credential type.
func ValidCredentialType(t string) bool {
	switch t {
	case CredentialNoNeed, CredentialUserPwd, CredentialToken:
		return true
	}
	return false
}

// IssueTracker configures an external bug tracker. Products that may file
// issues in it are bound through tracker_product links.
type IssueTracker struct {
	TrackerID           string `json:"tracker_id"`
	Name                string `json:"name"`
	ServiceURL          string `json:"service_url"`
	APIURL              string `json:"api_url"`
	IssueReportEndpoint string `json:"issue_report_endpoint"`
	IssueURLFmt         string `json:"issue_url_fmt"`
	ValidateRegex       string `json:"validate_regex"`
	AllowAddCaseToIssue bool   `json:"allow_add_case_to_issue"`
	CredentialType      string `json:"credential_type"`
	ClassPath           string `json:"class_path"`
	IssueReportParams   string `json:"issue_report_params"`
	IssueReportTempl    string `json:"issue_report_templ"`
	Username            string `json:"username"`
	Password            string `json:"-"`
	Token               string `json:"-"`
	SecretFile          string `json:"secret_file"`
}

// Issue links an external issue to a case and optionally to the case-run
// where it was found.
type Issue struct {
	IssueID     string `json:"issue_id"`
	IssueKey    string `json:"issue_key"`
	TrackerID   string `json:"tracker_id"`
	CaseID      string `json:"case_id"`
	CaseRunID   string `json:"case_run_id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}
