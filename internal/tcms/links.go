package tcms

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// link records a from → to edge. Linking an existing pair is a no-op.
func (s *Service) link(linkType, fromID, toID string, sortKey int) error {
	existing, err := fetch[types.Link](s, types.TableLinks, types.Filter{
		"link_type": linkType, "from_id": fromID, "to_id": toID,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = s.save(types.TableLinks, "", &types.Link{
		LinkType: linkType, FromID: fromID, ToID: toID, SortKey: sortKey,
	})
	return err
}

// unlink removes a from → to edge. Returns ErrNotLinked when absent.
func (s *Service) unlink(linkType, fromID, toID string) error {
	existing, err := fetch[types.Link](s, types.TableLinks, types.Filter{
		"link_type": linkType, "from_id": fromID, "to_id": toID,
	})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return fmt.Errorf("%s %s → %s: %w", linkType, fromID, toID, ErrNotLinked)
	}
	for _, l := range existing {
		if err := s.remove(types.TableLinks, l.LinkID); err != nil {
			return err
		}
	}
	return nil
}

// linksFrom returns the edges leaving fromID in sort-key order.
func (s *Service) linksFrom(linkType, fromID string) ([]*types.Link, error) {
	return fetch[types.Link](s, types.TableLinks, types.Filter{"link_type": linkType, "from_id": fromID})
}

// linksTo returns the edges arriving at toID in sort-key order.
func (s *Service) linksTo(linkType, toID string) ([]*types.Link, error) {
	return fetch[types.Link](s, types.TableLinks, types.Filter{"link_type": linkType, "to_id": toID})
}

// linkedIDs returns the to IDs of the edges leaving fromID.
func (s *Service) linkedIDs(linkType, fromID string) ([]string, error) {
	links, err := s.linksFrom(linkType, fromID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ToID
	}
	return ids, nil
}

// EnsureTag returns the tag named name, creating it if needed.
func (s *Service) EnsureTag(name string) (*types.Tag, error) {
	tag, err := first[types.Tag](s, types.TableTags, types.Filter{"name": name})
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	tag = &types.Tag{Name: name}
	if tag.TagID, err = s.save(types.TableTags, "", tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Tags lists every tag by name.
func (s *Service) Tags(filter types.Filter) ([]*types.Tag, error) {
	return fetch[types.Tag](s, types.TableTags, filter)
}

func (s *Service) addTag(linkType, objectID, name string) error {
	tag, err := s.EnsureTag(name)
	if err != nil {
		return err
	}
	return s.link(linkType, objectID, tag.TagID, 0)
}

func (s *Service) removeTag(linkType, objectID, name string) error {
	tag, err := first[types.Tag](s, types.TableTags, types.Filter{"name": name})
	if err != nil {
		return err
	}
	return s.unlink(linkType, objectID, tag.TagID)
}

func (s *Service) tagsOf(linkType, objectID string) ([]*types.Tag, error) {
	ids, err := s.linkedIDs(linkType, objectID)
	if err != nil {
		return nil, err
	}
	return fetch[types.Tag](s, types.TableTags, types.Filter{"tag_id": ids})
}
