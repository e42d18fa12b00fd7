package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/repo"
)

func newDoubtSvc(t *testing.T) (*DoubtService, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewDoubtService(newSvcDB(t), rec, DoubtLimits{}), rec
}

func mustCreateThread(t *testing.T, s *DoubtService, asker Actor, title string) *ThreadView {
	t.Helper()
	v, err := s.Create(context.Background(), asker, CreateThreadInput{
		Title:       title,
		Description: "details about " + title,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

// ---------- Create ----------

func TestDoubtService_Create_DefaultsAndTags(t *testing.T) {
	s, _ := newDoubtSvc(t)
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)

	v, err := s.Create(context.Background(), asker, CreateThreadInput{
		Title:       "  Why does my goroutine leak?  ",
		Description: "It never returns.",
		Tags:        []string{"Go Routines", "go-routines", "  ", "Channels"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Status != domain.DoubtOpen || v.AssignedInstructorID != nil {
		t.Fatalf("new thread should be OPEN and unassigned: %+v", v.DoubtThread)
	}
	if v.Title != "Why does my goroutine leak?" {
		t.Fatalf("title not trimmed: %q", v.Title)
	}
	if got := strings.Join(v.Tags, ","); got != "go-routines,channels" {
		t.Fatalf("tags = %q", got)
	}
	if v.AskedBy.ID != asker.ID || v.AskedBy.Name != "ana" {
		t.Fatalf("asker identity = %+v", v.AskedBy)
	}
}

func TestDoubtService_Create_Validation(t *testing.T) {
	s, _ := newDoubtSvc(t)
	s.Limits.MaxTags = 1
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)

	cases := []struct {
		name  string
		in    CreateThreadInput
		field string
	}{
		{"empty title", CreateThreadInput{Title: " ", Description: "d"}, "title"},
		{"long title", CreateThreadInput{Title: strings.Repeat("é", 201), Description: "d"}, "title"},
		{"empty description", CreateThreadInput{Title: "t"}, "description"},
		{"too many tags", CreateThreadInput{Title: "t", Description: "d", Tags: []string{"a", "b"}}, "tags"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), asker, tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Fields[0].Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Fields[0].Field, tc.field)
			}
		})
	}
}

func TestDoubtService_Create_CourseAndLesson(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	c1 := seedCourse(t, s.DB, 0, true)
	c2 := seedCourse(t, s.DB, 0, true)
	l := &domain.Lesson{CourseID: c1.ID, Title: "Channels"}
	if err := repo.CreateLesson(ctx, s.DB, l); err != nil {
		t.Fatalf("lesson: %v", err)
	}

	v, err := s.Create(ctx, asker, CreateThreadInput{Title: "t", Description: "d", LessonID: &l.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.CourseID == nil || *v.CourseID != c1.ID {
		t.Fatalf("course should be derived from lesson, got %v", v.CourseID)
	}

	if _, err := s.Create(ctx, asker, CreateThreadInput{Title: "t", Description: "d", CourseID: &c2.ID, LessonID: &l.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("lesson of another course: want ErrValidation, got %v", err)
	}
	if _, err := s.Create(ctx, asker, CreateThreadInput{Title: "t", Description: "d", CourseID: uintPtr(999)}); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("want ErrCourseNotFound, got %v", err)
	}
	if _, err := s.Create(ctx, asker, CreateThreadInput{Title: "t", Description: "d", LessonID: uintPtr(999)}); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("want ErrLessonNotFound, got %v", err)
	}
}

// ---------- PostMessage ----------

func TestDoubtService_PostMessage_OrderedHistoryAndEvents(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	th := mustCreateThread(t, s, asker, "nil map panic")

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := s.PostMessage(ctx, asker, th.ID, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("PostMessage %d: %v", i, err)
		}
	}

	got, err := s.Get(ctx, asker, th.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != n {
		t.Fatalf("messages = %d, want %d", len(got.Messages), n)
	}
	for i, m := range got.Messages {
		if m.Content != fmt.Sprintf("msg %d", i) {
			t.Fatalf("message %d out of order: %q", i, m.Content)
		}
		if m.Sender.ID != asker.ID {
			t.Fatalf("sender = %+v", m.Sender)
		}
	}
	if evs := rec.named(EventReceiveMessage); len(evs) != n {
		t.Fatalf("receive events = %d, want %d", len(evs), n)
	}
}

func TestDoubtService_PostMessage_ForbiddenWritesNothing(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	other := seedActor(t, s.DB, "bob", domain.RoleStudent)
	instr := seedActor(t, s.DB, "ivy", domain.RoleInstructor)
	th := mustCreateThread(t, s, asker, "closures")

	for _, a := range []Actor{other, instr} {
		if _, err := s.PostMessage(ctx, a, th.ID, "hello"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("actor %d: want ErrForbidden, got %v", a.ID, err)
		}
	}
	msgs, _ := repo.ListMessages(ctx, s.DB, th.ID)
	if len(msgs) != 0 {
		t.Fatalf("forbidden post persisted %d messages", len(msgs))
	}
	if rec.count() != 0 {
		t.Fatalf("forbidden post published %d events", rec.count())
	}
}

func TestDoubtService_PostMessage_Validation(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	th := mustCreateThread(t, s, asker, "t")

	if _, err := s.PostMessage(ctx, asker, th.ID, "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank: want ErrValidation, got %v", err)
	}
	if _, err := s.PostMessage(ctx, asker, th.ID, strings.Repeat("x", 5001)); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized: want ErrValidation, got %v", err)
	}
	if _, err := s.PostMessage(ctx, asker, 999, "hi"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("missing thread: want ErrThreadNotFound, got %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  hi  ":            "hi",
		"a\r\nb":            "a\nb",
		"a\rb":              "a\nb",
		"a\n\n\n\n\nb":      "a\n\nb",
		"p1\r\n\r\n\r\np2 ": "p1\n\np2",
	}
	for in, want := range cases {
		if got := normalizeText(in); got != want {
			t.Errorf("normalizeText(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestDoubtService_NormalizesStoredText(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)

	th, err := s.Create(ctx, asker, CreateThreadInput{Title: "crlf", Description: "line 1\r\nline 2\r\n\r\n\r\n\r\nend"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if th.Description != "line 1\nline 2\n\nend" {
		t.Fatalf("description = %q", th.Description)
	}

	if _, err := s.PostMessage(ctx, asker, th.ID, "p1\r\n\r\n\r\np2"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if _, _, err := s.PostMessageOnce(ctx, asker, th.ID, "\r\nq1\r\rq2\r\n", "k-1"); err != nil {
		t.Fatalf("PostMessageOnce: %v", err)
	}
	msgs, err := repo.ListMessages(ctx, s.DB, th.ID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("messages = %d, err = %v", len(msgs), err)
	}
	if msgs[0].Content != "p1\n\np2" || msgs[1].Content != "q1\n\nq2" {
		t.Fatalf("stored contents = %q, %q", msgs[0].Content, msgs[1].Content)
	}
	evs := rec.named(EventReceiveMessage)
	if len(evs) != 2 {
		t.Fatalf("receive events = %d", len(evs))
	}
}

func TestNewDoubtService_ZeroLimitsFallBackToDefaults(t *testing.T) {
	s := NewDoubtService(nil, nil, DoubtLimits{})
	if s.Limits != DefaultDoubtLimits() {
		t.Fatalf("limits = %+v, want %+v", s.Limits, DefaultDoubtLimits())
	}
	s = NewDoubtService(nil, nil, DoubtLimits{MaxTags: -1, TagMaxRunes: 8})
	if s.Limits.MaxTags != DefaultDoubtLimits().MaxTags || s.Limits.TagMaxRunes != 8 {
		t.Fatalf("limits = %+v", s.Limits)
	}
}

func TestDoubtService_AssignThenReply_ReopensResolvedThread(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	instr := seedActor(t, s.DB, "ivy", domain.RoleInstructor)
	th := mustCreateThread(t, s, asker, "defer order")

	if _, err := s.PostMessage(ctx, instr, th.ID, "before assignment"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned instructor: want ErrForbidden, got %v", err)
	}

	v, err := s.AssignInstructor(ctx, admin, th.ID, &instr.ID)
	if err != nil {
		t.Fatalf("AssignInstructor: %v", err)
	}
	if v.Instructor == nil || v.Instructor.ID != instr.ID {
		t.Fatalf("instructor = %+v", v.Instructor)
	}

	if _, err := s.UpdateStatus(ctx, instr, th.ID, "resolved"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := s.PostMessage(ctx, instr, th.ID, "one more note"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	got, _ := repo.GetThread(ctx, s.DB, th.ID)
	if got.Status != domain.DoubtOpen {
		t.Fatalf("status = %s, want OPEN", got.Status)
	}
	var reopened int
	for _, e := range rec.named(EventStatusUpdated) {
		if su := e.Payload.(StatusUpdate); su.Reopened && su.Status == domain.DoubtOpen {
			reopened++
		}
	}
	if reopened != 1 {
		t.Fatalf("reopen events = %d, want 1", reopened)
	}
	if len(rec.named(EventAssigned)) != 1 {
		t.Fatalf("expected one doubtAssigned event")
	}
}

func TestDoubtService_AskerReplyDoesNotReopen(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	th := mustCreateThread(t, s, asker, "t")

	if _, err := s.UpdateStatus(ctx, admin, th.ID, "CLOSED"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := s.PostMessage(ctx, asker, th.ID, "thanks"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	got, _ := repo.GetThread(ctx, s.DB, th.ID)
	if got.Status != domain.DoubtClosed {
		t.Fatalf("asker reply changed status to %s", got.Status)
	}
}

func TestDoubtService_PostMessageOnce_Replay(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	th := mustCreateThread(t, s, asker, "t")

	first, replayed, err := s.PostMessageOnce(ctx, asker, th.ID, "hello", "key-1")
	if err != nil || replayed {
		t.Fatalf("first post: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := s.PostMessageOnce(ctx, asker, th.ID, "hello again", "key-1")
	if err != nil || !replayed {
		t.Fatalf("second post: replayed=%v err=%v", replayed, err)
	}
	if second.ID != first.ID || second.Content != "hello" {
		t.Fatalf("replay returned %+v, want message %d", second, first.ID)
	}

	msgs, _ := repo.ListMessages(ctx, s.DB, th.ID)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if n := len(rec.named(EventReceiveMessage)); n != 1 {
		t.Fatalf("receive events = %d, want 1", n)
	}

	// Keys are scoped per thread.
	th2 := mustCreateThread(t, s, asker, "t2")
	if _, replayed, err := s.PostMessageOnce(ctx, asker, th2.ID, "hello", "key-1"); err != nil || replayed {
		t.Fatalf("other thread: replayed=%v err=%v", replayed, err)
	}
}

// ---------- UpdateStatus / Assign ----------

func TestDoubtService_UpdateStatus_Authorization(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	instr := seedActor(t, s.DB, "ivy", domain.RoleInstructor)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	th := mustCreateThread(t, s, asker, "t")

	if _, err := s.UpdateStatus(ctx, asker, th.ID, "RESOLVED"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("asker: want ErrForbidden, got %v", err)
	}
	if _, err := s.UpdateStatus(ctx, instr, th.ID, "RESOLVED"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned instructor: want ErrForbidden, got %v", err)
	}
	if _, err := s.UpdateStatus(ctx, admin, th.ID, "PENDING"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: want ErrValidation, got %v", err)
	}
	v, err := s.UpdateStatus(ctx, admin, th.ID, "closed")
	if err != nil {
		t.Fatalf("admin UpdateStatus: %v", err)
	}
	if v.Status != domain.DoubtClosed {
		t.Fatalf("status = %s", v.Status)
	}
	if evs := rec.named(EventStatusUpdated); len(evs) != 1 || evs[0].ThreadID != th.ID {
		t.Fatalf("status events = %+v", evs)
	}
}

func TestDoubtService_AssignInstructor_Rules(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	instr := seedActor(t, s.DB, "ivy", domain.RoleInstructor)
	th := mustCreateThread(t, s, asker, "t")

	if _, err := s.AssignInstructor(ctx, instr, th.ID, &instr.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin: want ErrForbidden, got %v", err)
	}
	if _, err := s.AssignInstructor(ctx, admin, th.ID, &asker.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("student target: want ErrValidation, got %v", err)
	}
	if _, err := s.AssignInstructor(ctx, admin, th.ID, uintPtr(999)); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing target: want ErrUserNotFound, got %v", err)
	}
	if err := s.DB.Model(&domain.User{}).Where("id = ?", instr.ID).Update("status", domain.UserInactive).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.AssignInstructor(ctx, admin, th.ID, &instr.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("inactive target: want ErrValidation, got %v", err)
	}

	v, err := s.AssignInstructor(ctx, admin, th.ID, nil)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if v.AssignedInstructorID != nil || v.Instructor != nil {
		t.Fatalf("expected unassigned thread, got %+v", v)
	}
}

// ---------- List ----------

func TestDoubtService_List_FiltersAndMine(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	ana := seedActor(t, s.DB, "ana", domain.RoleStudent)
	bob := seedActor(t, s.DB, "bob", domain.RoleStudent)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	instr := seedActor(t, s.DB, "ivy", domain.RoleInstructor)

	a1 := mustCreateThread(t, s, ana, "a1")
	mustCreateThread(t, s, ana, "a2")
	b1 := mustCreateThread(t, s, bob, "b1")
	if _, err := s.AssignInstructor(ctx, admin, b1.ID, &instr.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := s.UpdateStatus(ctx, admin, a1.ID, "RESOLVED"); err != nil {
		t.Fatalf("status: %v", err)
	}

	items, total, err := s.List(ctx, ana, ListThreadsQuery{Mine: true}, 1, 10)
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("ana mine: total=%d len=%d err=%v", total, len(items), err)
	}
	items, total, _ = s.List(ctx, instr, ListThreadsQuery{Mine: true}, 1, 10)
	if total != 1 || items[0].ID != b1.ID || items[0].Instructor == nil {
		t.Fatalf("instructor mine: total=%d items=%+v", total, items)
	}
	_, total, _ = s.List(ctx, bob, ListThreadsQuery{Status: "resolved"}, 1, 10)
	if total != 1 {
		t.Fatalf("resolved total = %d", total)
	}
	if _, _, err := s.List(ctx, bob, ListThreadsQuery{Status: "weird"}, 1, 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: want ErrValidation, got %v", err)
	}

	page, total, _ := s.List(ctx, bob, ListThreadsQuery{}, 2, 2)
	if total != 3 || len(page) != 1 {
		t.Fatalf("page 2: total=%d len=%d", total, len(page))
	}

	n, last, err := s.ListStats(ctx, bob, ListThreadsQuery{})
	if err != nil || n != 3 || last == nil {
		t.Fatalf("ListStats: n=%d last=%v err=%v", n, last, err)
	}
}

// ---------- Delete ----------

func TestDoubtService_DeleteThreadAndMessage(t *testing.T) {
	s, rec := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	other := seedActor(t, s.DB, "bob", domain.RoleStudent)
	admin := seedActor(t, s.DB, "root", domain.RoleAdmin)
	th := mustCreateThread(t, s, asker, "t")
	m, err := s.PostMessage(ctx, asker, th.ID, "hi")
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if err := s.DeleteMessage(ctx, asker, m.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("asker delete message: want ErrForbidden, got %v", err)
	}
	if err := s.DeleteMessage(ctx, admin, m.ID); err != nil {
		t.Fatalf("admin delete message: %v", err)
	}
	if err := s.DeleteMessage(ctx, admin, m.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("second delete: want ErrMessageNotFound, got %v", err)
	}
	if len(rec.named(EventMessageDeleted)) != 1 {
		t.Fatalf("expected one doubtMessageDeleted event")
	}

	if err := s.DeleteThread(ctx, other, th.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other delete thread: want ErrForbidden, got %v", err)
	}
	if err := s.DeleteThread(ctx, asker, th.ID); err != nil {
		t.Fatalf("asker delete thread: %v", err)
	}
	if _, err := s.Get(ctx, asker, th.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("after delete: want ErrThreadNotFound, got %v", err)
	}
}

// ---------- Similar ----------

func TestDoubtService_Similar(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)

	mk := func(title, desc string) uint {
		v, err := s.Create(ctx, asker, CreateThreadInput{Title: title, Description: desc})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return v.ID
	}
	base := mk("goroutine leak in worker pool", "worker pool goroutines never exit")
	near := mk("worker pool goroutine leak", "goroutines in my worker pool leak")
	mk("css grid layout", "columns collapse on mobile")

	res, err := s.Similar(ctx, asker, base, 5)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(res) != 1 || res[0].ID != near {
		t.Fatalf("Similar = %+v, want only thread %d", res, near)
	}
	if res[0].Score <= 0 || res[0].Score > 1 {
		t.Fatalf("score out of range: %v", res[0].Score)
	}

	if _, err := s.Similar(ctx, asker, 999, 5); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("want ErrThreadNotFound, got %v", err)
	}
}

func TestDoubtService_Exists(t *testing.T) {
	s, _ := newDoubtSvc(t)
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	th := mustCreateThread(t, s, asker, "t")

	if err := s.Exists(context.Background(), th.ID); err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if err := s.Exists(context.Background(), th.ID+1); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("want ErrThreadNotFound, got %v", err)
	}
}

func TestDoubtService_Version_ChangesWithMessages(t *testing.T) {
	s, _ := newDoubtSvc(t)
	ctx := context.Background()
	asker := seedActor(t, s.DB, "ana", domain.RoleStudent)
	th := mustCreateThread(t, s, asker, "versioned")

	v1, err := s.Version(ctx, th.ID)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if again, _ := s.Version(ctx, th.ID); again != v1 {
		t.Fatalf("version not stable: %q vs %q", v1, again)
	}

	if _, err := s.PostMessage(ctx, asker, th.ID, "more context"); err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	v2, err := s.Version(ctx, th.ID)
	if err != nil || v2 == v1 {
		t.Fatalf("version should change after a post: %q -> %q (%v)", v1, v2, err)
	}

	if _, err := s.Version(ctx, 9999); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("want ErrThreadNotFound, got %v", err)
	}
}
