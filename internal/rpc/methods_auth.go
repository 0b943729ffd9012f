package rpc

import (
	"context"
	"errors"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (s *Server) registerAuth() {
	s.Register(Method{Name: "Auth.login", Anonymous: true, Handler: s.authLogin})
	s.Register(Method{Name: "Auth.logout", Handler: s.authLogout})
	s.Register(Method{Name: "Version.get", Anonymous: true, Handler: s.versionGet})
	s.Register(Method{Name: "User.get_me", Handler: s.userGetMe})
	s.Register(Method{Name: "User.filter", Handler: s.userFilter})
	s.Register(Method{Name: "Tag.get_tags", Handler: s.tagGetTags})
}

// authLogin checks {username, password} and returns a session key to send
// back in the sessionid cookie.
func (s *Server) authLogin(_ context.Context, call *Call) (any, error) {
	f, err := call.Args.Struct(0)
	if err != nil {
		return nil, err
	}
	username, err := f.Required("username")
	if err != nil {
		return nil, err
	}
	password, err := f.Required("password")
	if err != nil {
		return nil, err
	}
	u, err := s.svc.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	return s.sessions.create(u.UserID), nil
}

func (s *Server) authLogout(_ context.Context, call *Call) (any, error) {
	if call.Session != "" {
		s.sessions.delete(call.Session)
	}
	return nil, nil
}

func (s *Server) versionGet(context.Context, *Call) (any, error) {
	return s.version, nil
}

func (s *Server) userGetMe(_ context.Context, call *Call) (any, error) {
	return userStruct(call.User), nil
}

func (s *Server) userFilter(_ context.Context, call *Call) (any, error) {
	filter, err := filterArg(call.Args, 0)
	if err != nil {
		return nil, err
	}
	users, err := s.svc.ListUsers(filter)
	if err != nil {
		return nil, err
	}
	return list(users, userStruct), nil
}

// tagGetTags returns tags by {ids} or {names}; an empty struct lists all.
func (s *Server) tagGetTags(_ context.Context, call *Call) (any, error) {
	f, err := call.Args.OptStruct(0)
	if err != nil {
		return nil, err
	}
	filter := types.Filter{}
	if f.Has("ids") {
		ids, err := f.List("ids")
		if err != nil {
			return nil, err
		}
		filter["tag_id"] = ids
	}
	if f.Has("names") {
		names, err := f.List("names")
		if err != nil {
			return nil, err
		}
		filter["name"] = names
	}
	tags, err := s.svc.Tags(filter)
	if err != nil {
		return nil, err
	}
	return list(tags, tagStruct), nil
}

func filterArg(args Args, i int) (types.Filter, error) {
	f, err := args.OptStruct(i)
	if err != nil {
		return nil, err
	}
	return f.Filter()
}

// resolveUser finds a user by ID, username or email.
func (s *Server) resolveUser(ref string) (*types.User, error) {
	u, err := s.svc.GetUser(ref)
	if errors.Is(err, types.ErrNotFound) {
		return s.svc.UserByName(ref)
	}
	return u, err
}

// userIDField resolves the user named at key, or returns def when absent.
func (s *Server) userIDField(f Fields, key, def string) (string, error) {
	ref, err := f.String(key)
	if err != nil || ref == "" {
		return def, err
	}
	u, err := s.resolveUser(ref)
	if err != nil {
		return "", err
	}
	return u.UserID, nil
}

// resolveProduct finds a product by ID or name.
func (s *Server) resolveProduct(ref string) (*types.Product, error) {
	p, err := s.svc.GetProduct(ref)
	if errors.Is(err, types.ErrNotFound) {
		return s.svc.ProductByName(ref)
	}
	return p, err
}

func (s *Server) productField(f Fields, key string) (*types.Product, error) {
	ref, err := f.Required(key)
	if err != nil {
		return nil, err
	}
	return s.resolveProduct(ref)
}
