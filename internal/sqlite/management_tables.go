// This file declares the table mappings for users, products and the
// per-product vocabularies (versions, builds, components, categories), plan
// types, tags and environment groups.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

var usersDef = entityDef[types.User]{
	table:    types.TableUsers,
	idColumn: "user_id",
	columns:  []string{"username", "email", "password_hash", "is_superuser", "permissions", "created_at"},
	filters: map[string]string{
		"user_id":      "user_id",
		"username":     "username",
		"email":        "email",
		"is_superuser": "is_superuser",
	},
	orderBy: "username ASC",
	id:      func(u *types.User) *string { return &u.UserID },
	values: func(u *types.User) []any {
		perms := u.Permissions
		if perms == nil {
			perms = []string{}
		}
		permsJSON, _ := json.Marshal(perms)
		return []any{u.Username, u.Email, u.PasswordHash, boolToInt(u.IsSuperuser), string(permsJSON), formatTime(u.CreatedAt)}
	},
	scan: func(s scanner) (*types.User, error) {
		var u types.User
		var perms, createdAt string
		if err := s.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &u.IsSuperuser, &perms, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(perms), &u.Permissions); err != nil {
			return nil, fmt.Errorf("parsing permissions for %s: %w", u.Username, err)
		}
		var err error
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &u, nil
	},
	validate: func(u *types.User) error {
		if u.Username == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	create: func(u *types.User, now time.Time) {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type = 'run_cc' AND to_id = ?",
	},
}

var classificationsDef = entityDef[types.Classification]{
	table:    types.TableClassifications,
	idColumn: "classification_id",
	columns:  []string{"name"},
	filters:  map[string]string{"name": "name"},
	orderBy:  "name ASC",
	id:       func(c *types.Classification) *string { return &c.ClassificationID },
	values:   func(c *types.Classification) []any { return []any{c.Name} },
	scan: func(s scanner) (*types.Classification, error) {
		var c types.Classification
		if err := s.Scan(&c.ClassificationID, &c.Name); err != nil {
			return nil, err
		}
		return &c, nil
	},
	validate: func(c *types.Classification) error {
		if c.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
}

var productsDef = entityDef[types.Product]{
	table:    types.TableProducts,
	idColumn: "product_id",
	columns:  []string{"name", "classification_id", "description", "created_at"},
	filters: map[string]string{
		"product_id":        "product_id",
		"name":              "name",
		"classification_id": "classification_id",
	},
	orderBy: "name ASC",
	id:      func(p *types.Product) *string { return &p.ProductID },
	values: func(p *types.Product) []any {
		return []any{p.Name, nullable(p.ClassificationID), p.Description, formatTime(p.CreatedAt)}
	},
	scan: func(s scanner) (*types.Product, error) {
		var p types.Product
		var classID sql.NullString
		var createdAt string
		if err := s.Scan(&p.ProductID, &p.Name, &classID, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.ClassificationID = classID.String
		var err error
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		return &p, nil
	},
	validate: func(p *types.Product) error {
		if p.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	create: func(p *types.Product, now time.Time) {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type = 'tracker_product' AND to_id = ?",
	},
}

var versionsDef = entityDef[types.Version]{
	table:    types.TableVersions,
	idColumn: "version_id",
	columns:  []string{"product_id", "value"},
	filters: map[string]string{
		"product_id": "product_id",
		"value":      "value",
	},
	orderBy: "value ASC",
	id:      func(v *types.Version) *string { return &v.VersionID },
	values:  func(v *types.Version) []any { return []any{v.ProductID, v.Value} },
	scan: func(s scanner) (*types.Version, error) {
		var v types.Version
		if err := s.Scan(&v.VersionID, &v.ProductID, &v.Value); err != nil {
			return nil, err
		}
		return &v, nil
	},
	validate: func(v *types.Version) error {
		if v.Value == "" {
			return types.ErrInvalidName
		}
		if v.ProductID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
}

var buildsDef = entityDef[types.Build]{
	table:    types.TableBuilds,
	idColumn: "build_id",
	columns:  []string{"product_id", "name", "description", "is_active"},
	filters: map[string]string{
		"product_id": "product_id",
		"name":       "name",
		"is_active":  "is_active",
	},
	orderBy: "name ASC",
	id:      func(b *types.Build) *string { return &b.BuildID },
	values: func(b *types.Build) []any {
		return []any{b.ProductID, b.Name, b.Description, boolToInt(b.IsActive)}
	},
	scan: func(s scanner) (*types.Build, error) {
		var b types.Build
		if err := s.Scan(&b.BuildID, &b.ProductID, &b.Name, &b.Description, &b.IsActive); err != nil {
			return nil, err
		}
		return &b, nil
	},
	validate: func(b *types.Build) error {
		if b.Name == "" {
			return types.ErrInvalidName
		}
		if b.ProductID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
}

var componentsDef = entityDef[types.Component]{
	table:    types.TableComponents,
	idColumn: "component_id",
	columns:  []string{"product_id", "name", "initial_owner_id", "description"},
	filters: map[string]string{
		"component_id": "component_id",
		"product_id":   "product_id",
		"name":         "name",
	},
	orderBy: "name ASC",
	id:      func(c *types.Component) *string { return &c.ComponentID },
	values: func(c *types.Component) []any {
		return []any{c.ProductID, c.Name, nullable(c.InitialOwnerID), c.Description}
	},
	scan: func(s scanner) (*types.Component, error) {
		var c types.Component
		var owner sql.NullString
		if err := s.Scan(&c.ComponentID, &c.ProductID, &c.Name, &owner, &c.Description); err != nil {
			return nil, err
		}
		c.InitialOwnerID = owner.String
		return &c, nil
	},
	validate: func(c *types.Component) error {
		if c.Name == "" {
			return types.ErrInvalidName
		}
		if c.ProductID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type IN ('case_component', 'plan_component') AND to_id = ?",
	},
}

var categoriesDef = entityDef[types.Category]{
	table:    types.TableCategories,
	idColumn: "category_id",
	columns:  []string{"product_id", "name", "description"},
	filters: map[string]string{
		"product_id": "product_id",
		"name":       "name",
	},
	orderBy: "name ASC",
	id:      func(c *types.Category) *string { return &c.CategoryID },
	values:  func(c *types.Category) []any { return []any{c.ProductID, c.Name, c.Description} },
	scan: func(s scanner) (*types.Category, error) {
		var c types.Category
		if err := s.Scan(&c.CategoryID, &c.ProductID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		return &c, nil
	},
	validate: func(c *types.Category) error {
		if c.Name == "" {
			return types.ErrInvalidName
		}
		if c.ProductID == "" {
			return types.ErrInvalidReference
		}
		return nil
	},
}

var planTypesDef = entityDef[types.PlanType]{
	table:    types.TablePlanTypes,
	idColumn: "plan_type_id",
	columns:  []string{"name", "description"},
	filters:  map[string]string{"name": "name"},
	orderBy:  "name ASC",
	id:       func(p *types.PlanType) *string { return &p.PlanTypeID },
	values:   func(p *types.PlanType) []any { return []any{p.Name, p.Description} },
	scan: func(s scanner) (*types.PlanType, error) {
		var p types.PlanType
		if err := s.Scan(&p.PlanTypeID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		return &p, nil
	},
	validate: func(p *types.PlanType) error {
		if p.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
}

var tagsDef = entityDef[types.Tag]{
	table:    types.TableTags,
	idColumn: "tag_id",
	columns:  []string{"name"},
	filters: map[string]string{
		"tag_id": "tag_id",
		"name":   "name",
	},
	orderBy: "name ASC",
	id:      func(t *types.Tag) *string { return &t.TagID },
	values:  func(t *types.Tag) []any { return []any{t.Name} },
	scan: func(s scanner) (*types.Tag, error) {
		var t types.Tag
		if err := s.Scan(&t.TagID, &t.Name); err != nil {
			return nil, err
		}
		return &t, nil
	},
	validate: func(t *types.Tag) error {
		if t.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type IN ('case_tag', 'plan_tag', 'run_tag') AND to_id = ?",
	},
}

var envGroupsDef = entityDef[types.EnvGroup]{
	table:    types.TableEnvGroups,
	idColumn: "env_group_id",
	columns:  []string{"name", "manager_id", "is_active"},
	filters: map[string]string{
		"env_group_id": "env_group_id",
		"name":         "name",
		"is_active":    "is_active",
	},
	orderBy: "name ASC",
	id:      func(g *types.EnvGroup) *string { return &g.EnvGroupID },
	values: func(g *types.EnvGroup) []any {
		return []any{g.Name, nullable(g.ManagerID), boolToInt(g.IsActive)}
	},
	scan: func(s scanner) (*types.EnvGroup, error) {
		var g types.EnvGroup
		var manager sql.NullString
		if err := s.Scan(&g.EnvGroupID, &g.Name, &manager, &g.IsActive); err != nil {
			return nil, err
		}
		g.ManagerID = manager.String
		return &g, nil
	},
	validate: func(g *types.EnvGroup) error {
		if g.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type = 'plan_env_group' AND to_id = ?",
		`DELETE FROM links WHERE link_type = 'run_env_value' AND to_id IN (
    SELECT v.env_value_id FROM env_values v
    JOIN env_properties p ON p.env_property_id = v.env_property_id
    WHERE p.env_group_id = ?)`,
	},
}

var envPropertiesDef = entityDef[types.EnvProperty]{
	table:    types.TableEnvProperties,
	idColumn: "env_property_id",
	columns:  []string{"env_group_id", "name", "is_active"},
	filters: map[string]string{
		"env_group_id": "env_group_id",
		"name":         "name",
	},
	orderBy: "name ASC",
	id:      func(p *types.EnvProperty) *string { return &p.EnvPropertyID },
	values: func(p *types.EnvProperty) []any {
		return []any{p.EnvGroupID, p.Name, boolToInt(p.IsActive)}
	},
	scan: func(s scanner) (*types.EnvProperty, error) {
		var p types.EnvProperty
		if err := s.Scan(&p.EnvPropertyID, &p.EnvGroupID, &p.Name, &p.IsActive); err != nil {
			return nil, err
		}
		return &p, nil
	},
	validate: func(p *types.EnvProperty) error {
		if p.Name == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	cascade: []string{
		`DELETE FROM links WHERE link_type = 'run_env_value' AND to_id IN (
    SELECT env_value_id FROM env_values WHERE env_property_id = ?)`,
	},
}

var envValuesDef = entityDef[types.EnvValue]{
	table:    types.TableEnvValues,
	idColumn: "env_value_id",
	columns:  []string{"env_property_id", "value", "is_active"},
	filters: map[string]string{
		"env_value_id":    "env_value_id",
		"env_property_id": "env_property_id",
		"value":           "value",
	},
	orderBy: "value ASC",
	id:      func(v *types.EnvValue) *string { return &v.EnvValueID },
	values: func(v *types.EnvValue) []any {
		return []any{v.EnvPropertyID, v.Value, boolToInt(v.IsActive)}
	},
	scan: func(s scanner) (*types.EnvValue, error) {
		var v types.EnvValue
		if err := s.Scan(&v.EnvValueID, &v.EnvPropertyID, &v.Value, &v.IsActive); err != nil {
			return nil, err
		}
		return &v, nil
	},
	validate: func(v *types.EnvValue) error {
		if v.Value == "" {
			return types.ErrInvalidName
		}
		return nil
	},
	cascade: []string{
		"DELETE FROM links WHERE link_type = 'run_env_value' AND to_id = ?",
	},
}
