package tcms

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// CreateProduct creates a product together with its default category,
// its unspecified version and its unspecified build.
func (s *Service) CreateProduct(ctx context.Context, name, classificationID, description string) (*types.Product, error) {
	p := &types.Product{Name: name, ClassificationID: classificationID, Description: description}
	id, err := s.save(types.TableProducts, "", p)
	if err != nil {
		return nil, err
	}
	p.ProductID = id

	children := []struct {
		table string
		e     any
	}{
		{types.TableCategories, &types.Category{ProductID: id, Name: types.DefaultCategoryName}},
		{types.TableVersions, &types.Version{ProductID: id, Value: types.UnspecifiedVersion}},
		{types.TableBuilds, &types.Build{ProductID: id, Name: types.UnspecifiedBuild, IsActive: true}},
	}
	for _, c := range children {
		if _, err := s.save(c.table, "", c.e); err != nil {
			if derr := s.remove(types.TableProducts, id); derr != nil {
				s.logger.Warn("rolling back product failed", zap.String("product_id", id), zap.Error(derr))
			}
			return nil, fmt.Errorf("creating product defaults: %w", err)
		}
	}
	return s.GetProduct(id)
}

// GetProduct returns a product by ID.
func (s *Service) GetProduct(id string) (*types.Product, error) {
	return get[types.Product](s, types.TableProducts, id)
}

// ProductByName returns the product named name.
func (s *Service) ProductByName(name string) (*types.Product, error) {
	return first[types.Product](s, types.TableProducts, types.Filter{"name": name})
}

// ListProducts returns products matching filter, ordered by name.
func (s *Service) ListProducts(filter types.Filter) ([]*types.Product, error) {
	return fetch[types.Product](s, types.TableProducts, filter)
}

// AddVersion adds a version to a product.
func (s *Service) AddVersion(ctx context.Context, productID, value string) (*types.Version, error) {
	if err := s.exists(types.TableProducts, productID); err != nil {
		return nil, err
	}
	v := &types.Version{ProductID: productID, Value: value}
	id, err := s.save(types.TableVersions, "", v)
	if err != nil {
		return nil, err
	}
	v.VersionID = id
	return v, nil
}

// AddBuild adds an active build to a product.
func (s *Service) AddBuild(ctx context.Context, productID, name, description string) (*types.Build, error) {
	if err := s.exists(types.TableProducts, productID); err != nil {
		return nil, err
	}
	b := &types.Build{ProductID: productID, Name: name, Description: description, IsActive: true}
	id, err := s.save(types.TableBuilds, "", b)
	if err != nil {
		return nil, err
	}
	b.BuildID = id
	return b, nil
}

// AddComponent adds a component to a product.
func (s *Service) AddComponent(ctx context.Context, productID, name, ownerID, description string) (*types.Component, error) {
	if err := s.exists(types.TableProducts, productID); err != nil {
		return nil, err
	}
	c := &types.Component{ProductID: productID, Name: name, InitialOwnerID: ownerID, Description: description}
	id, err := s.save(types.TableComponents, "", c)
	if err != nil {
		return nil, err
	}
	c.ComponentID = id
	return c, nil
}

// AddCategory adds a case category to a product.
func (s *Service) AddCategory(ctx context.Context, productID, name, description string) (*types.Category, error) {
	if err := s.exists(types.TableProducts, productID); err != nil {
		return nil, err
	}
	c := &types.Category{ProductID: productID, Name: name, Description: description}
	id, err := s.save(types.TableCategories, "", c)
	if err != nil {
		return nil, err
	}
	c.CategoryID = id
	return c, nil
}

// ListVersions returns a product's versions.
func (s *Service) ListVersions(productID string) ([]*types.Version, error) {
	return fetch[types.Version](s, types.TableVersions, types.Filter{"product_id": productID})
}

// ListBuilds returns a product's builds, optionally only the active ones.
func (s *Service) ListBuilds(productID string, activeOnly bool) ([]*types.Build, error) {
	f := types.Filter{"product_id": productID}
	if activeOnly {
		f["is_active"] = true
	}
	return fetch[types.Build](s, types.TableBuilds, f)
}

// ListComponents returns a product's components.
func (s *Service) ListComponents(productID string) ([]*types.Component, error) {
	return fetch[types.Component](s, types.TableComponents, types.Filter{"product_id": productID})
}

// ListCategories returns a product's case categories.
func (s *Service) ListCategories(productID string) ([]*types.Category, error) {
	return fetch[types.Category](s, types.TableCategories, types.Filter{"product_id": productID})
}

// CategoryByName returns the product's category named name.
func (s *Service) CategoryByName(productID, name string) (*types.Category, error) {
	return first[types.Category](s, types.TableCategories, types.Filter{"product_id": productID, "name": name})
}

// PlanTypeByName returns the plan type named name.
func (s *Service) PlanTypeByName(name string) (*types.PlanType, error) {
	return first[types.PlanType](s, types.TablePlanTypes, types.Filter{"name": name})
}

// ListPlanTypes returns every plan type.
func (s *Service) ListPlanTypes() ([]*types.PlanType, error) {
	return fetch[types.PlanType](s, types.TablePlanTypes, nil)
}

// productOfCase resolves a case's product through its category.
func (s *Service) productOfCase(c *types.TestCase) (string, error) {
	cat, err := get[types.Category](s, types.TableCategories, c.CategoryID)
	if err != nil {
		return "", err
	}
	return cat.ProductID, nil
}
