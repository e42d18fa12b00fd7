// Doubt HTTP handlers.
//
// This file exposes REST endpoints for doubt threads:
//   - POST   /doubts                       (create)
//   - GET    /doubts                       (list, filtered, paginated, ETag support)
//   - GET    /doubts/{id}                  (thread with ordered messages, ETag support)
//   - GET    /doubts/{id}/similar          (related questions)
//   - POST   /doubts/{id}/messages         (post a message, Idempotency-Key aware)
//   - PUT    /doubts/{id}/status           (status transition)
//   - PUT    /doubts/{id}/assign           (assign or clear the instructor)
//   - DELETE /doubts/{id}                  (delete thread and its messages)
//   - DELETE /doubts/messages/{messageId}  (delete one message)
//
// Messages posted here go through the same service call as the real-time
// channel, so joined WebSocket connections receive them either way.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
	"github.com/tbourn/go-lms-backend/internal/utils"
)

//
// DTOs
//

// CreateDoubtRequest is the JSON payload for opening a thread. Lengths and
// tag rules are enforced by the service and reported as field details.
type CreateDoubtRequest struct {
	Title       string   `json:"title"       binding:"required" example:"Why does my goroutine leak?"`
	Description string   `json:"description" binding:"required" example:"The worker never returns after ctx is cancelled."`
	Tags        []string `json:"tags"        example:"go,concurrency"`
	CourseID    *uint    `json:"course_id"   binding:"omitempty,gt=0" example:"3"`
	LessonID    *uint    `json:"lesson_id"   binding:"omitempty,gt=0" example:"12"`
}

// PostDoubtMessageRequest is the JSON payload for replying in a thread.
type PostDoubtMessageRequest struct {
	Content string `json:"content" binding:"required" example:"Try selecting on ctx.Done() in the loop."`
}

// UpdateDoubtStatusRequest is the JSON payload for a status transition.
type UpdateDoubtStatusRequest struct {
	Status string `json:"status" binding:"required" example:"RESOLVED" enums:"OPEN,RESOLVED,CLOSED"`
}

// AssignInstructorRequest is the JSON payload for assignment. A null or
// missing instructor_id clears the assignment.
type AssignInstructorRequest struct {
	InstructorID *uint `json:"instructor_id" binding:"omitempty,gt=0" example:"7"`
}

// ListDoubtsResponse wraps a page of threads and pagination information.
type ListDoubtsResponse struct {
	Doubts     []services.ThreadView `json:"doubts"`
	Pagination Pagination            `json:"pagination"`
}

// SimilarDoubtsResponse lists related threads, best match first.
type SimilarDoubtsResponse struct {
	Doubts []services.SimilarThread `json:"doubts"`
}

//
// Helpers
//

// listQuery reads the thread filters from the query string.
func listQuery(c *gin.Context) (services.ListThreadsQuery, []services.FieldError) {
	var fields []services.FieldError
	q := services.ListThreadsQuery{
		Status: strings.TrimSpace(c.Query("status")),
		Tag:    strings.TrimSpace(c.Query("tag")),
		Mine:   c.Query("mine") == "true" || c.Query("mine") == "1",
	}
	optionalQueryID(c, "course_id", &q.CourseID, &fields)
	optionalQueryID(c, "lesson_id", &q.LessonID, &fields)
	optionalQueryID(c, "asked_by", &q.AskedBy, &fields)
	optionalQueryID(c, "assigned_to", &q.AssignedTo, &fields)
	return q, fields
}

// queryHash folds the raw query string into the listing ETag so that
// different filters or pages never share a validator.
func queryHash(raw string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(raw))
	return h.Sum32()
}

//
// Handlers
//

// CreateDoubt godoc
// @ID          createDoubt
// @Summary     Open a doubt thread
// @Description Creates an OPEN, unassigned thread asked by the current user.
// @Tags        Doubts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateDoubtRequest  true  "Thread payload"
// @Success     201   {object}  services.ThreadView
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404   {object}  handlers.ErrorResponse  "Course or lesson not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /doubts [post]
func (h *Handlers) CreateDoubt(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	var req CreateDoubtRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.doubtSvc.Create(c.Request.Context(), actor, services.CreateThreadInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		CourseID:    req.CourseID,
		LessonID:    req.LessonID,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(c.FullPath(), "/"), t.ID))
	ok(c, http.StatusCreated, t)
}

// ListDoubts godoc
// @ID          listDoubts
// @Summary     List doubt threads (paginated)
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Doubts
// @Produce     json
// @Security    BearerAuth
// @Param       status         query   string  false "OPEN, RESOLVED or CLOSED"
// @Param       course_id      query   int     false "Course filter"
// @Param       lesson_id      query   int     false "Lesson filter"
// @Param       asked_by       query   int     false "Asker filter"
// @Param       assigned_to    query   int     false "Assigned instructor filter"
// @Param       tag            query   string  false "Tag filter"
// @Param       mine           query   bool    false "Only threads I asked or am assigned to"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} handlers.ListDoubtsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /doubts [get]
func (h *Handlers) ListDoubts(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	q, fields := listQuery(c)
	if len(fields) > 0 {
		failValidation(c, fields)
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.doubtSvc.ListStats(ctx, actor, q); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"doubts:%d:%08x:%d:%d"`, actor.ID, queryHash(c.Request.URL.RawQuery), count, ts)
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.doubtSvc.List(ctx, actor, q, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListDoubtsResponse{Doubts: items, Pagination: newPagination(page, pageSize, total)})
}

// GetDoubt godoc
// @ID          getDoubt
// @Summary     Get a doubt thread
// @Description Returns the thread with its full message history ordered by sent time.
// @Tags        Doubts
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    int     true  "Thread ID"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} services.ThreadView
// @Header      200  {string} ETag  "Weak ETag for current thread state"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Doubt not found"
// @Router      /doubts/{id} [get]
func (h *Handlers) GetDoubt(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()

	if v, err := h.doubtSvc.Version(ctx, id); err == nil {
		if notModified(c, `W/"doubt:`+v+`"`) {
			return
		}
	}

	t, err := h.doubtSvc.Get(ctx, actor, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// SimilarDoubts godoc
// @ID          similarDoubts
// @Summary     Related questions
// @Description Other threads whose title and description overlap this one, best match first.
// @Tags        Doubts
// @Produce     json
// @Security    BearerAuth
// @Param       id  path   int  true   "Thread ID"
// @Param       k   query  int  false  "Maximum results"  minimum(1) maximum(20) default(5)
// @Success     200  {object} handlers.SimilarDoubtsResponse
// @Failure     404  {object} handlers.ErrorResponse "Doubt not found"
// @Router      /doubts/{id}/similar [get]
func (h *Handlers) SimilarDoubts(c *gin.Context) {
	const (
		defaultK = 5
		maxK     = 20
	)
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	k := utils.BoundedInt(c.Query("k"), defaultK, 1, maxK)

	items, err := h.doubtSvc.Similar(c.Request.Context(), actor, id, k)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SimilarDoubtsResponse{Doubts: items})
}

// PostDoubtMessage godoc
// @ID          postDoubtMessage
// @Summary     Reply in a doubt thread
// @Description Allowed for the asker, the assigned instructor and admins. A reply by the
// @Description assigned instructor or an admin reopens a RESOLVED or CLOSED thread.
// @Description Supports idempotency via the Idempotency-Key header (same key, same message).
// @Tags        Doubts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    int     true  "Thread ID"
// @Param       body             body    handlers.PostDoubtMessageRequest  true  "Message payload"
// @Success     201  {object}  services.MessageView  "Created"
// @Success     200  {object}  services.MessageView  "Replayed"
// @Header      200  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Doubt not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /doubts/{id}/messages [post]
func (h *Handlers) PostDoubtMessage(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req PostDoubtMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	m, replayed, err := h.doubtSvc.PostMessageOnce(c.Request.Context(), actor, id, req.Content, key)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, m)
		return
	}
	ok(c, http.StatusCreated, m)
}

// UpdateDoubtStatus godoc
// @ID          updateDoubtStatus
// @Summary     Change a thread's status
// @Description Allowed for the assigned instructor and admins. Any status may move to any other.
// @Tags        Doubts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int  true  "Thread ID"
// @Param       body  body  handlers.UpdateDoubtStatusRequest  true  "New status"
// @Success     200  {object} services.ThreadView
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Doubt not found"
// @Router      /doubts/{id}/status [put]
func (h *Handlers) UpdateDoubtStatus(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req UpdateDoubtStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.doubtSvc.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// AssignDoubt godoc
// @ID          assignDoubt
// @Summary     Assign an instructor
// @Description Admin only. The target must be an INSTRUCTOR; null clears the assignment.
// @Tags        Doubts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int  true  "Thread ID"
// @Param       body  body  handlers.AssignInstructorRequest  true  "Instructor"
// @Success     200  {object} services.ThreadView
// @Failure     400  {object} handlers.ErrorResponse "Target is not an instructor"
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Doubt or user not found"
// @Router      /doubts/{id}/assign [put]
func (h *Handlers) AssignDoubt(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req AssignInstructorRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.doubtSvc.AssignInstructor(c.Request.Context(), actor, id, req.InstructorID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteDoubt godoc
// @ID          deleteDoubt
// @Summary     Delete a thread
// @Description Allowed for the asker and admins. Messages are deleted with the thread.
// @Tags        Doubts
// @Security    BearerAuth
// @Param       id  path  int  true  "Thread ID"
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Doubt not found"
// @Router      /doubts/{id} [delete]
func (h *Handlers) DeleteDoubt(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.doubtSvc.DeleteThread(c.Request.Context(), actor, id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteDoubtMessage godoc
// @ID          deleteDoubtMessage
// @Summary     Delete a message
// @Description Admin only.
// @Tags        Doubts
// @Security    BearerAuth
// @Param       messageId  path  int  true  "Message ID"
// @Success     204  {string} string "No Content"
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Router      /doubts/messages/{messageId} [delete]
func (h *Handlers) DeleteDoubtMessage(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	id, valid := pathID(c, "messageId")
	if !valid {
		return
	}
	if err := h.doubtSvc.DeleteMessage(c.Request.Context(), actor, id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
