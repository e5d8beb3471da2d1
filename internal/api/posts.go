package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/publisher"
)

// Compose actions.
const (
	ActionDraft    = "draft"
	ActionSchedule = "schedule"
	ActionPublish  = "publish"
)

type composeRequest struct {
	CreatedBy   int64      `json:"created_by"`
	Content     string     `json:"content"`
	ImagePath   string     `json:"image_path"`
	AccountIDs  []int64    `json:"account_ids"`
	Action      string     `json:"action"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type updateRequest struct {
	Content    *string  `json:"content"`
	ImagePath  *string  `json:"image_path"`
	AccountIDs *[]int64 `json:"account_ids"`
}

type scheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type resultView struct {
	ID             int64      `json:"id"`
	AccountID      int64      `json:"account_id"`
	Platform       string     `json:"platform"`
	Status         string     `json:"status"`
	ExternalPostID string     `json:"external_post_id,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Likes          int64      `json:"likes"`
	Comments       int64      `json:"comments"`
	Shares         int64      `json:"shares"`
	AttemptID      string     `json:"attempt_id"`
}

type postView struct {
	ID          int64        `json:"id"`
	CreatedBy   int64        `json:"created_by"`
	Content     string       `json:"content"`
	ImagePath   string       `json:"image_path,omitempty"`
	Status      string       `json:"status"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Targets     []int64      `json:"account_ids"`
	Results     []resultView `json:"results,omitempty"`
}

type outcomeView struct {
	AttemptID string `json:"attempt_id"`
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type publishResponse struct {
	Post    *postView    `json:"post"`
	Outcome *outcomeView `json:"outcome,omitempty"`
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func newPostView(p *db.Post, targets []int64, results []*db.PostResult) *postView {
	v := &postView{
		ID:          p.ID,
		CreatedBy:   p.CreatedBy,
		Content:     p.Content,
		ImagePath:   p.ImagePath.String,
		Status:      p.Status,
		ScheduledAt: timePtr(p.ScheduledAt),
		PublishedAt: timePtr(p.PublishedAt),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Targets:     targets,
	}
	if v.Targets == nil {
		v.Targets = []int64{}
	}
	for _, r := range results {
		v.Results = append(v.Results, resultView{
			ID:             r.ID,
			AccountID:      r.AccountID,
			Platform:       r.Platform,
			Status:         r.Status,
			ExternalPostID: r.ExternalPostID.String,
			ErrorMessage:   r.ErrorMessage.String,
			PublishedAt:    timePtr(r.PublishedAt),
			Likes:          r.LikesCount,
			Comments:       r.CommentsCount,
			Shares:         r.SharesCount,
			AttemptID:      r.AttemptID,
		})
	}
	return v
}

func newOutcomeView(o publisher.Outcome) *outcomeView {
	return &outcomeView{
		AttemptID: o.AttemptID,
		Status:    string(o.Status),
		Succeeded: o.Succeeded,
		Failed:    o.Failed,
		Skipped:   o.Skipped,
	}
}

// loadPost returns the post with its targets and results.
func (s *Server) loadPost(ctx context.Context, id int64) (*postView, error) {
	p, err := s.store.GetPost(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, publisher.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	targets, err := s.store.ListPostTargets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	results, err := s.store.ListPostResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return newPostView(p, targets, results), nil
}

// validateCompose checks the fields the chosen action needs.
func (s *Server) validateCompose(req *composeRequest) error {
	if req.Action == "" {
		req.Action = ActionDraft
	}
	switch req.Action {
	case ActionDraft, ActionSchedule, ActionPublish:
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}

	req.Content = strings.TrimSpace(req.Content)
	req.AccountIDs = db.DedupeTargets(req.AccountIDs)
	for _, id := range req.AccountIDs {
		if id <= 0 {
			return fmt.Errorf("invalid account id %d", id)
		}
	}

	if req.Action == ActionDraft {
		if req.ScheduledAt != nil {
			return errors.New("scheduled_at is only allowed with the schedule action")
		}
		return nil
	}

	if err := post.CheckReady(req.Content, len(req.AccountIDs)); err != nil {
		return err
	}

	if req.Action == ActionSchedule {
		if req.ScheduledAt == nil {
			return errors.New("scheduled_at is required")
		}
		if err := post.ValidateSchedule(*req.ScheduledAt, s.now()); err != nil {
			return err
		}
	} else if req.ScheduledAt != nil {
		return errors.New("scheduled_at is only allowed with the schedule action")
	}
	return nil
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validateCompose(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	arg := db.CreatePostParams{
		CreatedBy: req.CreatedBy,
		Content:   req.Content,
		ImagePath: strings.TrimSpace(req.ImagePath),
		Status:    post.StatusDraft,
	}
	if req.Action == ActionSchedule {
		at := req.ScheduledAt.UTC()
		arg.Status = post.StatusScheduled
		arg.ScheduledAt = &at
	}

	created, _, err := s.store.CreatePostWithTargets(r.Context(), arg, req.AccountIDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	var outcome *outcomeView
	if req.Action == ActionPublish {
		o, err := s.publisher.PublishNow(r.Context(), created.ID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		outcome = newOutcomeView(o)
	}

	view, err := s.loadPost(r.Context(), created.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{Post: view, Outcome: outcome})
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	var (
		rows []*db.Post
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		if !post.Status(status).Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
			return
		}
		rows, err = s.store.ListPostsByStatus(r.Context(), post.Status(status))
	} else {
		rows, err = s.store.ListPosts(r.Context(), limitParam(r, 50))
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	views := make([]*postView, 0, len(rows))
	for _, p := range rows {
		targets, err := s.store.ListPostTargets(r.Context(), p.ID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		views = append(views, newPostView(p, targets, nil))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	view, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// updatePost edits content, image and targets of a draft or scheduled post.
func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var req updateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	current, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	status := post.Status(current.Status)
	if !status.Editable() {
		writeError(w, http.StatusConflict, fmt.Sprintf("post %d is %s and can no longer be edited", id, status))
		return
	}

	content := current.Content
	if req.Content != nil {
		content = strings.TrimSpace(*req.Content)
	}
	image := current.ImagePath
	if req.ImagePath != nil {
		image = strings.TrimSpace(*req.ImagePath)
	}
	targets := current.Targets
	if req.AccountIDs != nil {
		targets = db.DedupeTargets(*req.AccountIDs)
	}

	if status != post.StatusDraft {
		if err := post.CheckReady(content, len(targets)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var replace []int64
	if req.AccountIDs != nil {
		replace = targets
	}
	updated, err := s.store.EditPost(r.Context(), db.UpdatePostContentParams{
		ID:        id,
		Content:   content,
		ImagePath: image,
	}, replace)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusConflict, fmt.Sprintf("post %d can no longer be edited", id))
		return
	}

	view, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// publishPost publishes a draft or scheduled post immediately. Drafts are
// checked here the same way compose checks them.
func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	current, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if post.Status(current.Status).Claimable() {
		if err := post.CheckReady(current.Content, len(current.Targets)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.runPublish(w, r, s.publisher.PublishNow)
}

func (s *Server) republishPost(w http.ResponseWriter, r *http.Request) {
	s.runPublish(w, r, s.publisher.Republish)
}

func (s *Server) runPublish(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (publisher.Outcome, error)) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	outcome, err := fn(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	view, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{Post: view, Outcome: newOutcomeView(outcome)})
}

// schedulePost sets or moves the publish time of a draft or scheduled post.
func (s *Server) schedulePost(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ScheduledAt == nil {
		writeError(w, http.StatusBadRequest, "scheduled_at is required")
		return
	}
	if err := post.ValidateSchedule(*req.ScheduledAt, s.now()); err != nil {
		writeErr(w, r, err)
		return
	}

	targets, err := s.store.ListPostTargets(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if len(targets) == 0 {
		if _, err := s.loadPost(r.Context(), id); err != nil {
			writeErr(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, post.ErrNoTargets.Error())
		return
	}

	scheduled, err := s.store.SchedulePost(r.Context(), id, req.ScheduledAt.UTC())
	if err != nil {
		writeErr(w, r, err)
		return
	}

	view, err := s.loadPost(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !scheduled {
		writeErr(w, r, &post.TransitionError{From: post.Status(view.Status), To: post.StatusScheduled})
		return
	}
	writeJSON(w, http.StatusOK, view)
}
