package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
)

type doubtFixture struct {
	env                *testEnv
	askerID, tutorID   uint
	asker, tutor, root string
	outsider           string
}

func newDoubtFixture(t *testing.T) *doubtFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &doubtFixture{env: env}
	f.askerID, f.asker = env.user(t, "asker", domain.RoleStudent)
	f.tutorID, f.tutor = env.user(t, "tutor", domain.RoleInstructor)
	_, f.root = env.user(t, "root", domain.RoleAdmin)
	_, f.outsider = env.user(t, "outsider", domain.RoleStudent)
	return f
}

func (f *doubtFixture) open(t *testing.T, title string) services.ThreadView {
	t.Helper()
	w := f.env.do(t, http.MethodPost, "/doubts", f.asker, CreateDoubtRequest{
		Title:       title,
		Description: "goroutines keep running after cancel",
		Tags:        []string{"Go", "go", "Concurrency"},
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[services.ThreadView](t, w)
}

func TestCreateDoubt(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Why does my goroutine leak?")

	if th.Status != domain.DoubtOpen || th.AssignedInstructorID != nil {
		t.Fatalf("new thread = %+v", th.DoubtThread)
	}
	if th.AskedBy.ID != f.askerID {
		t.Fatalf("asker = %+v", th.AskedBy)
	}
	if len(th.Tags) != 2 || th.Tags[0] != "go" || th.Tags[1] != "concurrency" {
		t.Fatalf("tags = %v", th.Tags)
	}
}

func TestCreateDoubt_Validation(t *testing.T) {
	f := newDoubtFixture(t)

	w := f.env.do(t, http.MethodPost, "/doubts", f.asker, map[string]any{"description": "no title"})
	er := expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)
	if len(er.Details) != 1 || er.Details[0].Field != "title" {
		t.Fatalf("details = %+v", er.Details)
	}

	w = f.env.do(t, http.MethodPost, "/doubts", f.asker, map[string]any{"title": "t", "description": "d", "course_id": 999})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = f.env.do(t, http.MethodPost, "/doubts", "", map[string]any{"title": "t", "description": "d"})
	expectCode(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestGetDoubt_MessagesAndETag(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Channels")
	path := fmt.Sprintf("/doubts/%d", th.ID)
	msgs := path + "/messages"

	for i := 0; i < 3; i++ {
		w := f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: fmt.Sprintf("m%d", i)})
		expectStatus(t, w, http.StatusCreated)
	}

	w := f.env.do(t, http.MethodGet, path, f.outsider, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[services.ThreadView](t, w)
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d; want 3", len(got.Messages))
	}
	for i, m := range got.Messages {
		if m.Content != fmt.Sprintf("m%d", i) || m.Sender.ID != f.askerID {
			t.Fatalf("message %d = %+v", i, m)
		}
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	w = f.env.do(t, http.MethodGet, path, f.asker, nil, "If-None-Match", etag)
	expectStatus(t, w, http.StatusNotModified)

	f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: "one more"})
	w = f.env.do(t, http.MethodGet, path, f.asker, nil, "If-None-Match", etag)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("ETag") == etag {
		t.Fatal("ETag did not change after a new message")
	}
}

func TestGetDoubt_BadAndUnknownID(t *testing.T) {
	f := newDoubtFixture(t)
	w := f.env.do(t, http.MethodGet, "/doubts/abc", f.asker, nil)
	er := expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)
	if er.Details[0].Field != "id" {
		t.Fatalf("details = %+v", er.Details)
	}
	w = f.env.do(t, http.MethodGet, "/doubts/0", f.asker, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = f.env.do(t, http.MethodGet, "/doubts/4242", f.asker, nil)
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestPostDoubtMessage_Authorization(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Select")
	msgs := fmt.Sprintf("/doubts/%d/messages", th.ID)

	w := f.env.do(t, http.MethodPost, msgs, f.outsider, PostDoubtMessageRequest{Content: "me too"})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = f.env.do(t, http.MethodPost, msgs, f.tutor, PostDoubtMessageRequest{Content: "not yet assigned"})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = f.env.do(t, http.MethodPost, msgs, f.root, PostDoubtMessageRequest{Content: "admin reply"})
	expectStatus(t, w, http.StatusCreated)

	w = f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: " \r\n\r\n "})
	er := expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)
	if er.Details[0].Field != "content" {
		t.Fatalf("details = %+v", er.Details)
	}

	var n int64
	f.env.db.Model(&domain.DoubtMessage{}).Where("thread_id = ?", th.ID).Count(&n)
	if n != 1 {
		t.Fatalf("messages stored = %d; want 1", n)
	}
}

func TestPostDoubtMessage_Idempotent(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Mutex")
	msgs := fmt.Sprintf("/doubts/%d/messages", th.ID)

	w1 := f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: "hello"}, middleware.HeaderIdempotencyKey, "k-1")
	expectStatus(t, w1, http.StatusCreated)
	first := decode[services.MessageView](t, w1)

	w2 := f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: "hello"}, middleware.HeaderIdempotencyKey, "k-1")
	expectStatus(t, w2, http.StatusOK)
	if w2.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatal("replay header missing")
	}
	if again := decode[services.MessageView](t, w2); again.ID != first.ID {
		t.Fatalf("replayed id = %d; want %d", again.ID, first.ID)
	}

	w3 := f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: "hello"}, middleware.HeaderIdempotencyKey, "k-2")
	expectStatus(t, w3, http.StatusCreated)

	w4 := f.env.do(t, http.MethodPost, msgs, f.asker, PostDoubtMessageRequest{Content: "hello"}, middleware.HeaderIdempotencyKey, "bad key!")
	expectCode(t, w4, http.StatusBadRequest, "bad_idempotency_key")
}

func TestAssignThenReplyReopens(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "WaitGroup")
	base := fmt.Sprintf("/doubts/%d", th.ID)

	w := f.env.do(t, http.MethodPut, base+"/assign", f.asker, AssignInstructorRequest{InstructorID: &f.tutorID})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = f.env.do(t, http.MethodPut, base+"/assign", f.root, AssignInstructorRequest{InstructorID: &f.tutorID})
	expectStatus(t, w, http.StatusOK)
	if got := decode[services.ThreadView](t, w); got.Instructor == nil || got.Instructor.ID != f.tutorID {
		t.Fatalf("instructor = %+v", got.Instructor)
	}

	w = f.env.do(t, http.MethodPut, base+"/status", f.tutor, UpdateDoubtStatusRequest{Status: "RESOLVED"})
	expectStatus(t, w, http.StatusOK)

	w = f.env.do(t, http.MethodPut, base+"/status", f.asker, UpdateDoubtStatusRequest{Status: "CLOSED"})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = f.env.do(t, http.MethodPost, base+"/messages", f.tutor, PostDoubtMessageRequest{Content: "one more hint"})
	expectStatus(t, w, http.StatusCreated)

	w = f.env.do(t, http.MethodGet, base, f.asker, nil)
	if got := decode[services.ThreadView](t, w); got.Status != domain.DoubtOpen {
		t.Fatalf("status after responder reply = %s; want OPEN", got.Status)
	}

	w = f.env.do(t, http.MethodPut, base+"/status", f.tutor, UpdateDoubtStatusRequest{Status: "archived"})
	expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)

	// null clears the assignment
	w = f.env.do(t, http.MethodPut, base+"/assign", f.root, []byte(`{"instructor_id":null}`))
	expectStatus(t, w, http.StatusOK)
	if got := decode[services.ThreadView](t, w); got.Instructor != nil {
		t.Fatalf("instructor = %+v; want nil", got.Instructor)
	}
}

func TestAssignDoubt_TargetMustBeInstructor(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Context")
	path := fmt.Sprintf("/doubts/%d/assign", th.ID)

	w := f.env.do(t, http.MethodPut, path, f.root, AssignInstructorRequest{InstructorID: &f.askerID})
	expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)

	missing := uint(9999)
	w = f.env.do(t, http.MethodPut, path, f.root, AssignInstructorRequest{InstructorID: &missing})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestListDoubts_FiltersPaginationETag(t *testing.T) {
	f := newDoubtFixture(t)
	for i := 0; i < 3; i++ {
		f.open(t, fmt.Sprintf("q%d", i))
	}

	w := f.env.do(t, http.MethodGet, "/doubts?page_size=2", f.outsider, nil)
	expectStatus(t, w, http.StatusOK)
	resp := decode[ListDoubtsResponse](t, w)
	if len(resp.Doubts) != 2 || resp.Pagination.Total != 3 || !resp.Pagination.HasNext || resp.Pagination.TotalPages != 2 {
		t.Fatalf("page = %+v", resp.Pagination)
	}
	if resp.Doubts[0].Title != "q2" {
		t.Fatalf("newest first expected, got %q", resp.Doubts[0].Title)
	}

	etag := w.Header().Get("ETag")
	w = f.env.do(t, http.MethodGet, "/doubts?page_size=2", f.outsider, nil, "If-None-Match", etag)
	expectStatus(t, w, http.StatusNotModified)

	// a different page never shares the validator
	w = f.env.do(t, http.MethodGet, "/doubts?page_size=2&page=2", f.outsider, nil, "If-None-Match", etag)
	expectStatus(t, w, http.StatusOK)

	w = f.env.do(t, http.MethodGet, "/doubts?mine=true", f.outsider, nil)
	if got := decode[ListDoubtsResponse](t, w); got.Pagination.Total != 0 {
		t.Fatalf("outsider mine total = %d", got.Pagination.Total)
	}
	w = f.env.do(t, http.MethodGet, "/doubts?mine=true", f.asker, nil)
	if got := decode[ListDoubtsResponse](t, w); got.Pagination.Total != 3 {
		t.Fatalf("asker mine total = %d", got.Pagination.Total)
	}
	w = f.env.do(t, http.MethodGet, "/doubts?tag=concurrency&status=OPEN", f.asker, nil)
	if got := decode[ListDoubtsResponse](t, w); got.Pagination.Total != 3 {
		t.Fatalf("tag filter total = %d", got.Pagination.Total)
	}

	w = f.env.do(t, http.MethodGet, "/doubts?course_id=x&asked_by=-1", f.asker, nil)
	er := expectCode(t, w, http.StatusBadRequest, ErrCodeValidation)
	if len(er.Details) != 2 {
		t.Fatalf("details = %+v", er.Details)
	}
}

func TestSimilarDoubts(t *testing.T) {
	f := newDoubtFixture(t)
	base := f.open(t, "goroutine leak after context cancel")
	f.open(t, "goroutine leak in worker pool")
	f.open(t, "css grid alignment")

	w := f.env.do(t, http.MethodGet, fmt.Sprintf("/doubts/%d/similar?k=1", base.ID), f.asker, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[SimilarDoubtsResponse](t, w)
	if len(got.Doubts) != 1 || got.Doubts[0].Title != "goroutine leak in worker pool" {
		t.Fatalf("similar = %+v", got.Doubts)
	}

	w = f.env.do(t, http.MethodGet, "/doubts/777/similar", f.asker, nil)
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestDeleteDoubtAndMessage(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Delete me")
	base := fmt.Sprintf("/doubts/%d", th.ID)

	w := f.env.do(t, http.MethodPost, base+"/messages", f.asker, PostDoubtMessageRequest{Content: "oops"})
	m := decode[services.MessageView](t, w)

	w = f.env.do(t, http.MethodDelete, fmt.Sprintf("/doubts/messages/%d", m.ID), f.asker, nil)
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)
	w = f.env.do(t, http.MethodDelete, fmt.Sprintf("/doubts/messages/%d", m.ID), f.root, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = f.env.do(t, http.MethodDelete, fmt.Sprintf("/doubts/messages/%d", m.ID), f.root, nil)
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = f.env.do(t, http.MethodDelete, base, f.outsider, nil)
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)
	w = f.env.do(t, http.MethodDelete, base, f.asker, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = f.env.do(t, http.MethodGet, base, f.asker, nil)
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestPostDoubtMessage_NormalizesLineBreaks(t *testing.T) {
	f := newDoubtFixture(t)
	th := f.open(t, "Line endings")

	w := f.env.do(t, http.MethodPost, fmt.Sprintf("/doubts/%d/messages", th.ID), f.asker,
		PostDoubtMessageRequest{Content: "p1\r\n\r\n\r\np2 "})
	expectStatus(t, w, http.StatusCreated)
	if m := decode[services.MessageView](t, w); m.Content != "p1\n\np2" {
		t.Fatalf("content = %q", m.Content)
	}
}
