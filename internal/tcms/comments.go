package tcms

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// PostComment attaches a comment to a case-run, case, plan or run.
func (s *Service) PostComment(ctx context.Context, objectType, objectID, userID, text string) (*types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrInvalidContent
	}
	table, err := objectTable(objectType)
	if err != nil {
		return nil, err
	}
	if err := s.exists(table, objectID); err != nil {
		return nil, err
	}
	c := &types.Comment{ObjectType: objectType, ObjectID: objectID, UserID: userID, Text: text}
	id, err := s.save(types.TableComments, "", c)
	if err != nil {
		return nil, err
	}
	if c, err = get[types.Comment](s, types.TableComments, id); err != nil {
		return nil, err
	}
	s.emit(ctx, signals.CommentPosted, objectType, objectID, userID, map[string]string{"comment_id": id})
	return c, nil
}

// ListComments returns an object's visible comments, oldest first.
func (s *Service) ListComments(objectType, objectID string) ([]*types.Comment, error) {
	if _, err := objectTable(objectType); err != nil {
		return nil, err
	}
	return fetch[types.Comment](s, types.TableComments, types.Filter{
		"object_type": objectType, "object_id": objectID, "is_removed": false,
	})
}

// RemoveComment hides a comment. Only its author or a user holding the
// comment deletion permission may remove it.
func (s *Service) RemoveComment(ctx context.Context, commentID string, actor *types.User) error {
	c, err := get[types.Comment](s, types.TableComments, commentID)
	if err != nil {
		return err
	}
	if actor == nil || (actor.UserID != c.UserID && !actor.HasPerm(types.PermDeleteComment)) {
		return fmt.Errorf("removing comment %s: %w", commentID, types.ErrPermissionDenied)
	}
	if c.IsRemoved {
		return nil
	}
	c.IsRemoved = true
	_, err = s.save(types.TableComments, commentID, c)
	return err
}

// ValidateLinkURL checks that raw is an absolute http or https URL.
func ValidateLinkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", types.ErrInvalidURL, raw)
	}
	return nil
}

// AddLinkReference attaches a named URL to an object.
func (s *Service) AddLinkReference(ctx context.Context, objectType, objectID, name, rawURL string) (*types.LinkReference, error) {
	if strings.TrimSpace(name) == "" {
		return nil, types.ErrInvalidName
	}
	if err := ValidateLinkURL(rawURL); err != nil {
		return nil, err
	}
	table, err := objectTable(objectType)
	if err != nil {
		return nil, err
	}
	if err := s.exists(table, objectID); err != nil {
		return nil, err
	}
	l := &types.LinkReference{Name: name, URL: rawURL, ObjectType: objectType, ObjectID: objectID}
	id, err := s.save(types.TableLinkReferences, "", l)
	if err != nil {
		return nil, err
	}
	return get[types.LinkReference](s, types.TableLinkReferences, id)
}

// ListLinkReferences returns an object's link references, oldest first.
func (s *Service) ListLinkReferences(objectType, objectID string) ([]*types.LinkReference, error) {
	if _, err := objectTable(objectType); err != nil {
		return nil, err
	}
	return fetch[types.LinkReference](s, types.TableLinkReferences, types.Filter{
		"object_type": objectType, "object_id": objectID,
	})
}

// GetLinkReference returns a link reference by ID.
func (s *Service) GetLinkReference(id string) (*types.LinkReference, error) {
	return get[types.LinkReference](s, types.TableLinkReferences, id)
}

// RemoveLinkReference deletes a link reference.
func (s *Service) RemoveLinkReference(ctx context.Context, linkID string) error {
	return s.remove(types.TableLinkReferences, linkID)
}
