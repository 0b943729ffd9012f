// Package tracker builds issue links and new-issue report URLs for the
// external bug trackers configured in nitrate.
package tracker

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Errors returned by tracker services.
var (
	ErrInvalidKey        = errors.New("invalid issue key")
	ErrUnknownService    = errors.New("unknown tracker service")
	ErrCredentialMissing = errors.New("tracker credential missing")
)

// ReportContext carries the values substituted into report parameters and
// templates.
type ReportContext struct {
	Product     string
	Version     string
	Build       string
	Component   string
	CaseSummary string
	RunSummary  string
	CaseText    string
	CaseRunURL  string
}

func (rc ReportContext) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{product}", rc.Product,
		"{version}", rc.Version,
		"{build}", rc.Build,
		"{component}", rc.Component,
		"{case_summary}", rc.CaseSummary,
		"{run_summary}", rc.RunSummary,
		"{case_text}", rc.CaseText,
		"{caserun_url}", rc.CaseRunURL,
	)
}

// Service is the behavior of one tracker class.
type Service interface {
	// IssueURL returns the browser URL of an issue.
	IssueURL(key string) string
	// ValidateKey checks key against the tracker's validation regex.
	ValidateKey(key string) error
	// ReportURL returns a URL that opens the tracker's new-issue form
	// prefilled from rc.
	ReportURL(rc ReportContext) (string, error)
	// ReportBody renders the issue report template for rc.
	ReportBody(rc ReportContext) string
}

// New returns the service for t's class path.
func New(t *types.IssueTracker) (Service, error) {
	g := &generic{tracker: t}
	switch t.ClassPath {
	case "", types.TrackerClassGeneric:
		return g, nil
	case types.TrackerClassBugzilla:
		return &bugzilla{generic: g}, nil
	case types.TrackerClassJIRA:
		return &jira{generic: g}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownService, t.ClassPath)
}

// generic implements Service from the tracker's configured formats alone.
type generic struct {
	tracker *types.IssueTracker
}

func (g *generic) IssueURL(key string) string {
	return strings.ReplaceAll(g.tracker.IssueURLFmt, "{issue_key}", url.PathEscape(key))
}

func (g *generic) ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if g.tracker.ValidateRegex == "" {
		return nil
	}
	re, err := regexp.Compile(g.tracker.ValidateRegex)
	if err != nil {
		return fmt.Errorf("compiling validate regex of %s: %w", g.tracker.Name, err)
	}
	if !re.MatchString(key) {
		return fmt.Errorf("%w: %q does not match %s", ErrInvalidKey, key, g.tracker.ValidateRegex)
	}
	return nil
}

func (g *generic) ReportBody(rc ReportContext) string {
	return rc.replacer().Replace(g.tracker.IssueReportTempl)
}

func (g *generic) ReportURL(rc ReportContext) (string, error) {
	return g.reportURL(rc, nil)
}

// reportURL joins service_url with the report endpoint and adds the
// configured parameters followed by extra, which wins on conflicts.
func (g *generic) reportURL(rc ReportContext, extra url.Values) (string, error) {
	base := strings.TrimRight(g.tracker.ServiceURL, "/")
	if ep := strings.TrimLeft(g.tracker.IssueReportEndpoint, "/"); ep != "" {
		base += "/" + ep
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", types.ErrInvalidURL, base)
	}

	q := u.Query()
	r := rc.replacer()
	for key, value := range ParseParams(g.tracker.IssueReportParams) {
		q.Set(key, r.Replace(value))
	}
	for key, values := range extra {
		q[key] = values
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseParams reads "key: value" lines. Blank lines and lines without a
// colon are ignored.
func ParseParams(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

// bugzilla prefills Bugzilla's enter_bug form.
type bugzilla struct {
	*generic
}

func (b *bugzilla) ReportURL(rc ReportContext) (string, error) {
	extra := url.Values{}
	setIf(extra, "product", rc.Product)
	setIf(extra, "version", rc.Version)
	setIf(extra, "component", rc.Component)
	setIf(extra, "short_desc", rc.CaseSummary)
	setIf(extra, "comment", b.ReportBody(rc))
	return b.reportURL(rc, extra)
}

// jira prefills a JIRA create-issue link.
type jira struct {
	*generic
}

func (j *jira) ReportURL(rc ReportContext) (string, error) {
	extra := url.Values{}
	setIf(extra, "summary", rc.CaseSummary)
	setIf(extra, "description", j.ReportBody(rc))
	return j.reportURL(rc, extra)
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
