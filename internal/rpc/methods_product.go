package rpc

import (
	"context"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (s *Server) registerProduct() {
	s.Register(Method{Name: "Product.get", Handler: s.productGet})
	s.Register(Method{Name: "Product.filter", Handler: s.productFilter})
	s.Register(Method{Name: "Product.create", Perm: types.PermAddProduct, Handler: s.productCreate})
	s.Register(Method{Name: "Product.add_version", Perm: types.PermChangeProduct, Handler: s.productAddVersion})
	s.Register(Method{Name: "Product.get_versions", Handler: s.productGetVersions})
	s.Register(Method{Name: "Product.add_build", Perm: types.PermChangeProduct, Handler: s.productAddBuild})
	s.Register(Method{Name: "Product.get_builds", Handler: s.productGetBuilds})
	s.Register(Method{Name: "Product.add_component", Perm: types.PermChangeProduct, Handler: s.productAddComponent})
	s.Register(Method{Name: "Product.get_components", Handler: s.productGetComponents})
	s.Register(Method{Name: "Product.add_category", Perm: types.PermChangeProduct, Handler: s.productAddCategory})
	s.Register(Method{Name: "Product.get_categories", Handler: s.productGetCategories})
}

// productArg resolves positional parameter i as a product ID or name.
func (s *Server) productArg(args Args, i int) (*types.Product, error) {
	ref, err := args.String(i)
	if err != nil {
		return nil, err
	}
	return s.resolveProduct(ref)
}

func (s *Server) productGet(_ context.Context, call *Call) (any, error) {
	p, err := s.productArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	return productStruct(p), nil
}

func (s *Server) productFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	products, err := s.svc.ListProducts(filter)
	if err != nil {
		return nil, err
	}
	return list(products, productStruct), nil
}

// productCreate takes {name, classification_id, description}.
func (s *Server) productCreate(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	name, err := f.Required("name")
	if err != nil {
		return nil, err
	}
	classification, err := f.String("classification_id")
	if err != nil {
		return nil, err
	}
	description, err := f.String("description")
	if err != nil {
		return nil, err
	}
	p, err := s.svc.CreateProduct(ctx, name, classification, description)
	if err != nil {
		return nil, err
	}
	return productStruct(p), nil
}

// productAddVersion takes {product, value}.
func (s *Server) productAddVersion(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return nil, err
	}
	value, err := f.Required("value")
	if err != nil {
		return nil, err
	}
	v, err := s.svc.AddVersion(ctx, p.ProductID, value)
	if err != nil {
		return nil, err
	}
	return versionStruct(v), nil
}

func (s *Server) productGetVersions(_ context.Context, call *Call) (any, error) {
	p, err := s.productArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	versions, err := s.svc.ListVersions(p.ProductID)
	if err != nil {
		return nil, err
	}
	return list(versions, versionStruct), nil
}

// productAddBuild takes {product, name, description}.
func (s *Server) productAddBuild(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return nil, err
	}
	name, err := f.Required("name")
	if err != nil {
		return nil, err
	}
	description, err := f.String("description")
	if err != nil {
		return nil, err
	}
	b, err := s.svc.AddBuild(ctx, p.ProductID, name, description)
	if err != nil {
		return nil, err
	}
	return buildStruct(b), nil
}

// productGetBuilds takes a product and an optional is_active flag.
func (s *Server) productGetBuilds(_ context.Context, call *Call) (any, error) {
	p, err := s.productArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	activeOnly := false
	if len(call.Args) > 1 {
		if activeOnly, err = asBool(call.Args[1]); err != nil {
			return nil, err
		}
	}
	builds, err := s.svc.ListBuilds(p.ProductID, activeOnly)
	if err != nil {
		return nil, err
	}
	return list(builds, buildStruct), nil
}

// productAddComponent takes {product, name, initial_owner, description}.
// The owner defaults to the caller.
func (s *Server) productAddComponent(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return nil, err
	}
	name, err := f.Required("name")
	if err != nil {
		return nil, err
	}
	owner, err := s.userIDField(f, "initial_owner", call.User.UserID)
	if err != nil {
		return nil, err
	}
	description, err := f.String("description")
	if err != nil {
		return nil, err
	}
	c, err := s.svc.AddComponent(ctx, p.ProductID, name, owner, description)
	if err != nil {
		return nil, err
	}
	return componentStruct(c), nil
}

func (s *Server) productGetComponents(_ context.Context, call *Call) (any, error) {
	p, err := s.productArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	components, err := s.svc.ListComponents(p.ProductID)
	if err != nil {
		return nil, err
	}
	return list(components, componentStruct), nil
}

// productAddCategory takes {product, name, description}.
func (s *Server) productAddCategory(ctx context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	p, err := s.productField(f, "product")
	if err != nil {
		return nil, err
	}
	name, err := f.Required("name")
	if err != nil {
		return nil, err
	}
	description, err := f.String("description")
	if err != nil {
		return nil, err
	}
	c, err := s.svc.AddCategory(ctx, p.ProductID, name, description)
	if err != nil {
		return nil, err
	}
	return categoryStruct(c), nil
}

func (s *Server) productGetCategories(_ context.Context, call *Call) (any, error) {
	p, err := s.productArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	categories, err := s.svc.ListCategories(p.ProductID)
	if err != nil {
		return nil, err
	}
	return list(categories, categoryStruct), nil
}
