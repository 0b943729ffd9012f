package httpapi

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/mesh-intelligence/nitrate/internal/stats"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// CommentRequest is the body of POST /api/comments.
type CommentRequest struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	Comment    string `json:"comment"`
}

// LinkRequest is the body of POST /api/caseruns/{id}/links.
type LinkRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StatusRequest is the body of POST /api/caseruns/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// RunStatsResponse is the body of GET /api/runs/{id}/stats.
type RunStatsResponse struct {
	stats.Summary
	Assignees []stats.Progress `json:"assignees"`
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authorize(w, r, types.PermAddComment)
	if !ok {
		return
	}
	var req CommentRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	c, err := s.svc.PostComment(r.Context(), req.ObjectType, req.ObjectID, u.UserID, req.Comment)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	q := r.URL.Query()
	comments, err := s.svc.ListComments(q.Get("object_type"), q.Get("object_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

// handleRemoveComment lets the author, or a user holding the delete
// permission, remove a comment.
func (s *Server) handleRemoveComment(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authorize(w, r, "")
	if !ok {
		return
	}
	if err := s.svc.RemoveComment(r.Context(), r.PathValue("id"), u); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, types.PermAddLink); !ok {
		return
	}
	var req LinkRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	l, err := s.svc.AddLinkReference(r.Context(), types.ObjectCaseRun, r.PathValue("id"), req.Name, req.URL)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	links, err := s.svc.ListLinkReferences(types.ObjectCaseRun, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(links))
}

func (s *Server) handleRemoveLink(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, types.PermDeleteLink); !ok {
		return
	}
	if err := s.svc.RemoveLinkReference(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCaseRunStatus records a result for a case-run; the caller becomes
// its tester.
func (s *Server) handleCaseRunStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authorize(w, r, types.PermChangeCaseRun)
	if !ok {
		return
	}
	var req StatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	cr, err := s.svc.UpdateCaseRunStatus(r.Context(), r.PathValue("id"), req.Status, u.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

func (s *Server) handleSearchCases(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	q := r.URL.Query()
	query := types.CaseQuery{
		Summary:    q.Get("summary"),
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		CategoryID: q.Get("category_id"),
		AuthorID:   q.Get("author_id"),
		Tag:        q.Get("tag"),
		PlanID:     q.Get("plan_id"),
	}
	var err error
	if query.Limit, err = intParam(q, "limit"); err != nil {
		s.fail(w, err)
		return
	}
	if q.Has("is_automated") {
		n, err := intParam(q, "is_automated")
		if err != nil {
			s.fail(w, err)
			return
		}
		query.IsAutomated = &n
	}
	cases, err := s.svc.SearchCases(query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cases))
}

func (s *Server) handleSearchPlans(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	q := r.URL.Query()
	query := types.PlanQuery{
		Name:      q.Get("name"),
		ProductID: q.Get("product_id"),
		TypeID:    q.Get("type_id"),
		AuthorID:  q.Get("author_id"),
		OwnerID:   q.Get("owner_id"),
		Tag:       q.Get("tag"),
	}
	var err error
	if query.Limit, err = intParam(q, "limit"); err != nil {
		s.fail(w, err)
		return
	}
	if query.IsActive, err = boolParam(q, "is_active"); err != nil {
		s.fail(w, err)
		return
	}
	plans, err := s.svc.SearchPlans(query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(plans))
}

func (s *Server) handleSearchRuns(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	q := r.URL.Query()
	query := types.RunQuery{
		Summary:   q.Get("summary"),
		PlanID:    q.Get("plan_id"),
		BuildID:   q.Get("build_id"),
		ManagerID: q.Get("manager_id"),
	}
	var err error
	if query.Limit, err = intParam(q, "limit"); err != nil {
		s.fail(w, err)
		return
	}
	if query.Running, err = boolParam(q, "running"); err != nil {
		s.fail(w, err)
		return
	}
	runs, err := s.svc.SearchRuns(query)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	id := r.PathValue("id")
	if _, err := s.svc.GetRun(id); err != nil {
		s.fail(w, err)
		return
	}
	summary, err := s.svc.RunStats(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	progress, err := s.svc.RunAssigneeProgress(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunStatsResponse{Summary: summary, Assignees: nonNil(progress)})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, ""); !ok {
		return
	}
	u, err := s.svc.UserByName(r.PathValue("username"))
	if err != nil {
		s.fail(w, err)
		return
	}
	recent, err := s.svc.RecentActivity(u.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	recent.Plans = nonNil(recent.Plans)
	recent.Runs = nonNil(recent.Runs)
	recent.CaseRuns = nonNil(recent.CaseRuns)
	writeJSON(w, http.StatusOK, recent)
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func intParam(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{key: key, value: v}
	}
	return n, nil
}

func boolParam(q url.Values, key string) (*bool, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, &paramError{key: key, value: v}
	}
	return &b, nil
}

// paramError reports a malformed query parameter.
type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid query parameter " + e.key + "=" + strconv.Quote(e.value)
}

func (e *paramError) Unwrap() error { return types.ErrInvalidData }
