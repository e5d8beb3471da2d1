package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/abdulachik/crosspost/internal/scheduler"
)

type accountView struct {
	ID                int64     `json:"id"`
	Platform          string    `json:"platform"`
	PlatformAccountID string    `json:"platform_account_id"`
	Name              string    `json:"name"`
	Destination       string    `json:"destination"`
	Active            bool      `json:"active"`
	ConnectedAt       time.Time `json:"connected_at"`
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	accounts, err := s.accounts.List(r.Context(), activeOnly)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Tokens never leave the service.
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:                a.ID,
			Platform:          string(a.Platform),
			PlatformAccountID: a.PlatformAccountID,
			Name:              a.Name,
			Destination:       a.Destination(),
			Active:            a.Active,
			ConnectedAt:       a.ConnectedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

type commentView struct {
	ID           int64     `json:"id"`
	PostResultID int64     `json:"post_result_id"`
	AuthorName   string    `json:"author_name"`
	Content      string    `json:"content"`
	Replied      bool      `json:"replied"`
	ReplyContent string    `json:"reply_content,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	unreplied, _ := strconv.ParseBool(r.URL.Query().Get("unreplied"))

	comments, err := s.inbox.List(r.Context(), unreplied, limitParam(r, 100))
	if err != nil {
		writeErr(w, r, err)
		return
	}

	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView{
			ID:           c.ID,
			PostResultID: c.PostResultID,
			AuthorName:   c.AuthorName,
			Content:      c.Content,
			Replied:      c.Replied,
			ReplyContent: c.ReplyContent.String,
			CreatedAt:    c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views})
}

type replyRequest struct {
	Text string `json:"text"`
}

func (s *Server) replyToComment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	var req replyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	replyID, err := s.inbox.Reply(r.Context(), id, req.Text)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply_id": replyID})
}

type healthResponse struct {
	Status     string                            `json:"status"`
	Components map[string]scheduler.HealthStatus `json:"components"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Components: map[string]scheduler.HealthStatus{}}
	code := http.StatusOK

	if err := s.store.PingContext(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Components[scheduler.ComponentDatabase] = scheduler.HealthStatus{
			LastCheck: time.Now(),
			LastError: err.Error(),
			Message:   err.Error(),
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if s.health != nil {
		resp.Components = s.health.Snapshot()
		if !s.health.IsOverallHealthy() {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}
