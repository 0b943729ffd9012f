// Package xmlcase reads and writes test cases in the testopia XML format
// (version 1.1) used to move cases between plans and installations.
package xmlcase

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Version is the only document version accepted and written.
const Version = "1.1"

// Automation attribute values.
const (
	AutomatedManual    = "Manual"
	AutomatedAutomatic = "Automatic"
	AutomatedBoth      = "Both"
)

// Errors reported while decoding or validating a document.
var (
	ErrBadDocument      = errors.New("malformed testopia document")
	ErrBadVersion       = errors.New("unsupported testopia version")
	ErrNoCases          = errors.New("document has no test cases")
	ErrUnknownPriority  = errors.New("unknown priority")
	ErrUnknownStatus    = errors.New("unknown case status")
	ErrUnknownAutomated = errors.New("unknown automated value")
	ErrUnknownAuthor    = errors.New("unknown author")
	ErrUnknownTester    = errors.New("unknown default tester")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrMissingSummary   = errors.New("missing summary")
)

// Document is the root testopia element.
type Document struct {
	XMLName xml.Name `xml:"testopia"`
	Version string   `xml:"version,attr"`
	Cases   []Case   `xml:"testcase"`
}

// Case is one testcase element.
type Case struct {
	Author          string    `xml:"author,attr"`
	Priority        string    `xml:"priority,attr"`
	Automated       string    `xml:"automated,attr"`
	Status          string    `xml:"status,attr"`
	Summary         string    `xml:"summary"`
	CategoryName    string    `xml:"categoryname"`
	DefaultTester   string    `xml:"defaulttester,omitempty"`
	Notes           string    `xml:"notes"`
	Action          string    `xml:"action"`
	ExpectedResults string    `xml:"expectedresults"`
	Setup           string    `xml:"setup"`
	Breakdown       string    `xml:"breakdown"`
	Tags            []string  `xml:"tag"`
	PlanReferences  []PlanRef `xml:"testplan_reference"`
}

// PlanRef names a plan the case belonged to when exported.
type PlanRef struct {
	Type string `xml:"type,attr,omitempty"`
	Name string `xml:",chardata"`
}

// Resolver maps the names used in a document to stored IDs. Lookups that
// find nothing return types.ErrNotFound.
type Resolver interface {
	UserID(nameOrEmail string) (string, error)
	CategoryID(name string) (string, error)
}

// Imported is a validated case ready to be stored.
type Imported struct {
	Case *types.TestCase
	Text *types.CaseText
	Tags []string
}

// Decode parses a testopia document and checks its version.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := xml.NewDecoder(r)
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrBadVersion, doc.Version)
	}
	if len(doc.Cases) == 0 {
		return nil, ErrNoCases
	}
	return &doc, nil
}

// Validate checks every case against res and converts them. Either every
// case is valid or no case is returned; the error joins one entry per
// problem, each naming the 1-based case index.
func (d *Document) Validate(res Resolver) ([]Imported, error) {
	var errs []error
	out := make([]Imported, 0, len(d.Cases))
	for i := range d.Cases {
		imp, err := d.Cases[i].convert(res)
		if err != nil {
			errs = append(errs, fmt.Errorf("case %d: %w", i+1, err))
			continue
		}
		out = append(out, imp)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (c *Case) convert(res Resolver) (Imported, error) {
	summary := strings.TrimSpace(c.Summary)
	if summary == "" {
		return Imported{}, ErrMissingSummary
	}
	if !types.ValidPriority(c.Priority) {
		return Imported{}, fmt.Errorf("%w: %q", ErrUnknownPriority, c.Priority)
	}
	status := c.Status
	if status == "" {
		status = types.CaseStatusProposed
	}
	if !types.ValidCaseStatus(status) {
		return Imported{}, fmt.Errorf("%w: %q", ErrUnknownStatus, c.Status)
	}
	automated, err := ParseAutomated(c.Automated)
	if err != nil {
		return Imported{}, err
	}

	authorID, err := res.UserID(c.Author)
	if err != nil {
		return Imported{}, fmt.Errorf("%w: %q", ErrUnknownAuthor, c.Author)
	}
	var testerID string
	if c.DefaultTester != "" {
		if testerID, err = res.UserID(c.DefaultTester); err != nil {
			return Imported{}, fmt.Errorf("%w: %q", ErrUnknownTester, c.DefaultTester)
		}
	}
	categoryID, err := res.CategoryID(c.CategoryName)
	if err != nil {
		return Imported{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c.CategoryName)
	}

	tags := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return Imported{
		Case: &types.TestCase{
			Summary:         summary,
			Status:          status,
			Priority:        c.Priority,
			IsAutomated:     automated,
			AuthorID:        authorID,
			DefaultTesterID: testerID,
			CategoryID:      categoryID,
			Notes:           c.Notes,
		},
		Text: &types.CaseText{
			AuthorID:  authorID,
			Action:    c.Action,
			Effect:    c.ExpectedResults,
			Setup:     c.Setup,
			Breakdown: c.Breakdown,
		},
		Tags: tags,
	}, nil
}

// ParseAutomated maps the automated attribute to an automation value.
// Both names and numbers are accepted; empty means manual.
func ParseAutomated(s string) (int, error) {
	switch strings.TrimSpace(s) {
	case "", AutomatedManual, "0":
		return types.AutomationManual, nil
	case AutomatedAutomatic, "1":
		return types.AutomationAutomated, nil
	case AutomatedBoth, "2":
		return types.AutomationBoth, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAutomated, s)
}

// FormatAutomated is the inverse of ParseAutomated.
func FormatAutomated(v int) string {
	switch v {
	case types.AutomationAutomated:
		return AutomatedAutomatic
	case types.AutomationBoth:
		return AutomatedBoth
	}
	return AutomatedManual
}

// Encode writes cases as an indented version 1.1 document.
func Encode(w io.Writer, cases []Case) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(Document{Version: Version, Cases: cases}); err != nil {
		return fmt.Errorf("encoding testopia document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
