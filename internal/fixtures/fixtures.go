// Package fixtures loads YAML seed files and applies them through the
// service layer, so seeded data passes the same validation as data created
// over the API.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// ErrInvalidFixture is returned for a fixture file that cannot be applied.
var ErrInvalidFixture = errors.New("invalid fixture")

// File is the top level of a fixture document. Entities refer to each other
// by name: users by username, products and plans by name.
type File struct {
	Users    []User    `yaml:"users"`
	Trackers []Tracker `yaml:"trackers"`
	Products []Product `yaml:"products"`
	Plans    []Plan    `yaml:"plans"`
	Runs     []Run     `yaml:"runs"`
}

type User struct {
	Username  string   `yaml:"username"`
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	Superuser bool     `yaml:"superuser"`
	Perms     []string `yaml:"perms"`
}

type Tracker struct {
	Name          string   `yaml:"name"`
	ClassPath     string   `yaml:"class_path"`
	ServiceURL    string   `yaml:"service_url"`
	IssueURLFmt   string   `yaml:"issue_url_fmt"`
	ValidateRegex string   `yaml:"validate_regex"`
	ReportParams  string   `yaml:"issue_report_params"`
	Products      []string `yaml:"products"`
}

type Product struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Versions    []string    `yaml:"versions"`
	Builds      []string    `yaml:"builds"`
	Categories  []string    `yaml:"categories"`
	Components  []Component `yaml:"components"`
}

type Component struct {
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

type Plan struct {
	Name    string   `yaml:"name"`
	Product string   `yaml:"product"`
	Version string   `yaml:"version"`
	Type    string   `yaml:"type"`
	Author  string   `yaml:"author"`
	Text    string   `yaml:"text"`
	Tags    []string `yaml:"tags"`
	Cases   []Case   `yaml:"cases"`
}

type Case struct {
	Summary  string   `yaml:"summary"`
	Category string   `yaml:"category"`
	Priority string   `yaml:"priority"`
	Status   string   `yaml:"status"`
	Author   string   `yaml:"author"`
	Tester   string   `yaml:"tester"`
	Action   string   `yaml:"action"`
	Effect   string   `yaml:"effect"`
	Tags     []string `yaml:"tags"`
}

type Run struct {
	Summary string   `yaml:"summary"`
	Plan    string   `yaml:"plan"`
	Build   string   `yaml:"build"`
	Manager string   `yaml:"manager"`
	Tester  string   `yaml:"tester"`
	Tags    []string `yaml:"tags"`
}

// Result counts what Apply created.
type Result struct {
	Users    int `json:"users"`
	Trackers int `json:"trackers"`
	Products int `json:"products"`
	Plans    int `json:"plans"`
	Cases    int `json:"cases"`
	Runs     int `json:"runs"`
}

// Load decodes a fixture document. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile is Load on the named file.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Validate checks required fields and the product and plan references
// inside the file. Users may already exist in the database, so usernames
// are checked by Apply.
func (f *File) Validate() error {
	for i, u := range f.Users {
		if u.Username == "" || u.Email == "" {
			return fmt.Errorf("%w: users[%d]: username and email are required", ErrInvalidFixture, i)
		}
	}
	products := make(map[string]bool)
	for i, p := range f.Products {
		if p.Name == "" {
			return fmt.Errorf("%w: products[%d]: name is required", ErrInvalidFixture, i)
		}
		products[p.Name] = true
	}
	for i, t := range f.Trackers {
		if t.Name == "" {
			return fmt.Errorf("%w: trackers[%d]: name is required", ErrInvalidFixture, i)
		}
	}
	plans := make(map[string]bool)
	for i, p := range f.Plans {
		if p.Name == "" || p.Product == "" || p.Version == "" {
			return fmt.Errorf("%w: plans[%d]: name, product and version are required", ErrInvalidFixture, i)
		}
		if !products[p.Product] {
			return fmt.Errorf("%w: plans[%d]: product %q is not defined in this file", ErrInvalidFixture, i, p.Product)
		}
		for j, c := range p.Cases {
			if c.Summary == "" {
				return fmt.Errorf("%w: plans[%d].cases[%d]: summary is required", ErrInvalidFixture, i, j)
			}
		}
		plans[p.Name] = true
	}
	for i, r := range f.Runs {
		if r.Summary == "" || r.Build == "" {
			return fmt.Errorf("%w: runs[%d]: summary and build are required", ErrInvalidFixture, i)
		}
		if !plans[r.Plan] {
			return fmt.Errorf("%w: runs[%d]: plan %q is not defined in this file", ErrInvalidFixture, i, r.Plan)
		}
	}
	return nil
}

// applier carries the name lookups built while applying a file.
type applier struct {
	ctx      context.Context
	svc      *tcms.Service
	actor    *types.User
	versions map[string]string // product/value -> id
	builds   map[string]string // product/name -> id
	plans    map[string]*types.TestPlan
	res      Result
}

// Apply creates everything in f through svc. actor authors entities that
// name no author. Apply stops at the first error; entities created before
// it remain.
func Apply(ctx context.Context, svc *tcms.Service, f *File, actor *types.User) (*Result, error) {
	a := &applier{
		ctx:      ctx,
		svc:      svc,
		actor:    actor,
		versions: make(map[string]string),
		builds:   make(map[string]string),
		plans:    make(map[string]*types.TestPlan),
	}
	steps := []func(*File) error{a.users, a.products, a.trackers, a.applyPlans, a.runs}
	for _, step := range steps {
		if err := step(f); err != nil {
			return &a.res, err
		}
	}
	return &a.res, nil
}

func (a *applier) users(f *File) error {
	for _, u := range f.Users {
		created, err := a.svc.CreateUser(a.ctx, u.Username, u.Email, u.Password, u.Superuser)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Username, err)
		}
		if len(u.Perms) > 0 {
			if _, err := a.svc.Grant(a.ctx, created.UserID, u.Perms...); err != nil {
				return fmt.Errorf("user %s: %w", u.Username, err)
			}
		}
		a.res.Users++
	}
	return nil
}

func (a *applier) products(f *File) error {
	for _, p := range f.Products {
		prod, err := a.svc.CreateProduct(a.ctx, p.Name, "", p.Description)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.Name, err)
		}
		for _, v := range p.Versions {
			ver, err := a.svc.AddVersion(a.ctx, prod.ProductID, v)
			if err != nil {
				return fmt.Errorf("product %s version %s: %w", p.Name, v, err)
			}
			a.versions[p.Name+"/"+v] = ver.VersionID
		}
		for _, b := range p.Builds {
			build, err := a.svc.AddBuild(a.ctx, prod.ProductID, b, "")
			if err != nil {
				return fmt.Errorf("product %s build %s: %w", p.Name, b, err)
			}
			a.builds[p.Name+"/"+b] = build.BuildID
		}
		for _, c := range p.Categories {
			if _, err := a.svc.AddCategory(a.ctx, prod.ProductID, c, ""); err != nil {
				return fmt.Errorf("product %s category %s: %w", p.Name, c, err)
			}
		}
		for _, c := range p.Components {
			owner, err := a.user(c.Owner)
			if err != nil {
				return fmt.Errorf("product %s component %s: %w", p.Name, c.Name, err)
			}
			if _, err := a.svc.AddComponent(a.ctx, prod.ProductID, c.Name, owner, ""); err != nil {
				return fmt.Errorf("product %s component %s: %w", p.Name, c.Name, err)
			}
		}
		a.res.Products++
	}
	return nil
}

func (a *applier) trackers(f *File) error {
	for _, t := range f.Trackers {
		var productIDs []string
		for _, name := range t.Products {
			p, err := a.svc.ProductByName(name)
			if err != nil {
				return fmt.Errorf("tracker %s: product %s: %w", t.Name, name, err)
			}
			productIDs = append(productIDs, p.ProductID)
		}
		tr := &types.IssueTracker{
			Name:              t.Name,
			ClassPath:         t.ClassPath,
			ServiceURL:        t.ServiceURL,
			IssueURLFmt:       t.IssueURLFmt,
			ValidateRegex:     t.ValidateRegex,
			IssueReportParams: t.ReportParams,
			CredentialType:    types.CredentialNoNeed,
		}
		if _, err := a.svc.CreateTracker(a.ctx, tr, productIDs...); err != nil {
			return fmt.Errorf("tracker %s: %w", t.Name, err)
		}
		a.res.Trackers++
	}
	return nil
}

func (a *applier) applyPlans(f *File) error {
	for _, p := range f.Plans {
		prod, err := a.svc.ProductByName(p.Product)
		if err != nil {
			return fmt.Errorf("plan %s: product %s: %w", p.Name, p.Product, err)
		}
		versionID, ok := a.versions[p.Product+"/"+p.Version]
		if !ok {
			return fmt.Errorf("%w: plan %s: version %s of %s is not defined in this file", ErrInvalidFixture, p.Name, p.Version, p.Product)
		}
		typeName := p.Type
		if typeName == "" {
			typeName = "Function"
		}
		pt, err := a.svc.PlanTypeByName(typeName)
		if err != nil {
			return fmt.Errorf("plan %s: type %s: %w", p.Name, typeName, err)
		}
		author, err := a.user(p.Author)
		if err != nil {
			return fmt.Errorf("plan %s: %w", p.Name, err)
		}
		plan, err := a.svc.CreatePlan(a.ctx, tcms.NewPlan{
			Name:             p.Name,
			ProductID:        prod.ProductID,
			ProductVersionID: versionID,
			TypeID:           pt.PlanTypeID,
			AuthorID:         author,
			Text:             p.Text,
		})
		if err != nil {
			return fmt.Errorf("plan %s: %w", p.Name, err)
		}
		for _, tag := range p.Tags {
			if err := a.svc.AddPlanTag(a.ctx, plan.PlanID, tag); err != nil {
				return fmt.Errorf("plan %s: tag %s: %w", p.Name, tag, err)
			}
		}
		for _, c := range p.Cases {
			if err := a.createCase(prod.ProductID, plan.PlanID, c); err != nil {
				return fmt.Errorf("plan %s: case %q: %w", p.Name, c.Summary, err)
			}
		}
		a.plans[p.Name] = plan
		a.res.Plans++
	}
	return nil
}

func (a *applier) createCase(productID, planID string, c Case) error {
	categoryName := c.Category
	if categoryName == "" {
		categoryName = types.DefaultCategoryName
	}
	cat, err := a.svc.CategoryByName(productID, categoryName)
	if err != nil {
		return fmt.Errorf("category %s: %w", categoryName, err)
	}
	author, err := a.user(c.Author)
	if err != nil {
		return err
	}
	var tester string
	if c.Tester != "" {
		if tester, err = a.user(c.Tester); err != nil {
			return err
		}
	}
	_, err = a.svc.CreateCase(a.ctx, tcms.NewCase{
		Summary:         c.Summary,
		CategoryID:      cat.CategoryID,
		Priority:        c.Priority,
		Status:          c.Status,
		AuthorID:        author,
		DefaultTesterID: tester,
		Text:            tcms.CaseTextInput{Action: c.Action, Effect: c.Effect},
		PlanIDs:         []string{planID},
		Tags:            c.Tags,
	})
	if err != nil {
		return err
	}
	a.res.Cases++
	return nil
}

func (a *applier) runs(f *File) error {
	for _, r := range f.Runs {
		plan := a.plans[r.Plan]
		prod, err := a.svc.GetProduct(plan.ProductID)
		if err != nil {
			return fmt.Errorf("run %s: %w", r.Summary, err)
		}
		buildID, ok := a.builds[prod.Name+"/"+r.Build]
		if !ok {
			return fmt.Errorf("%w: run %s: build %s of %s is not defined in this file", ErrInvalidFixture, r.Summary, r.Build, prod.Name)
		}
		manager, err := a.user(r.Manager)
		if err != nil {
			return fmt.Errorf("run %s: %w", r.Summary, err)
		}
		var tester string
		if r.Tester != "" {
			if tester, err = a.user(r.Tester); err != nil {
				return fmt.Errorf("run %s: %w", r.Summary, err)
			}
		}
		_, err = a.svc.CreateRun(a.ctx, tcms.NewRun{
			Summary:         r.Summary,
			PlanID:          plan.PlanID,
			BuildID:         buildID,
			ManagerID:       manager,
			DefaultTesterID: tester,
			Tags:            r.Tags,
		})
		if err != nil {
			return fmt.Errorf("run %s: %w", r.Summary, err)
		}
		a.res.Runs++
	}
	return nil
}

// user resolves a username to an ID. Empty means the acting user.
func (a *applier) user(name string) (string, error) {
	if name == "" {
		if a.actor == nil {
			return "", fmt.Errorf("%w: no user given and no acting user", ErrInvalidFixture)
		}
		return a.actor.UserID, nil
	}
	u, err := a.svc.UserByName(name)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", name, err)
	}
	return u.UserID, nil
}
