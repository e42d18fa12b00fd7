// Package services – DoubtService
//
// This file implements DoubtService, which owns the lifecycle of doubt
// threads and their messages: creation with tag normalization, listing with
// filters, authorization-gated posting with the implicit reopen transition,
// status changes, instructor assignment and deletion.
//
// Every persisted change that peers care about is handed to the injected
// Publisher after the transaction commits, so REST and socket ingress produce
// identical room traffic.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include thread/user identifiers where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-lms-backend/internal/domain"
	"github.com/tbourn/go-lms-backend/internal/repo"
	"github.com/tbourn/go-lms-backend/internal/search"
	"github.com/tbourn/go-lms-backend/internal/utils"
)

// DoubtLimits bounds user supplied thread content.
type DoubtLimits struct {
	TitleMaxRunes       int
	DescriptionMaxRunes int
	MessageMaxRunes     int
	MaxTags             int
	TagMaxRunes         int
}

// DefaultDoubtLimits returns the limits used when none are configured.
func DefaultDoubtLimits() DoubtLimits {
	return DoubtLimits{
		TitleMaxRunes:       200,
		DescriptionMaxRunes: 5000,
		MessageMaxRunes:     5000,
		MaxTags:             10,
		TagMaxRunes:         32,
	}
}

// DoubtService coordinates doubt threads and messages.
type DoubtService struct {
	DB     *gorm.DB
	Events Publisher
	Limits DoubtLimits

	// IdempotencyTTL is how long an Idempotency-Key for a posted message is
	// honoured.
	IdempotencyTTL time.Duration
}

// NewDoubtService constructs a DoubtService. A nil publisher drops events.
func NewDoubtService(db *gorm.DB, events Publisher, limits DoubtLimits) *DoubtService {
	if events == nil {
		events = NopPublisher{}
	}
	def := DefaultDoubtLimits()
	if limits.TitleMaxRunes <= 0 {
		limits.TitleMaxRunes = def.TitleMaxRunes
	}
	if limits.DescriptionMaxRunes <= 0 {
		limits.DescriptionMaxRunes = def.DescriptionMaxRunes
	}
	if limits.MessageMaxRunes <= 0 {
		limits.MessageMaxRunes = def.MessageMaxRunes
	}
	if limits.MaxTags <= 0 {
		limits.MaxTags = def.MaxTags
	}
	if limits.TagMaxRunes <= 0 {
		limits.TagMaxRunes = def.TagMaxRunes
	}
	return &DoubtService{DB: db, Events: events, Limits: limits, IdempotencyTTL: 24 * time.Hour}
}

// CreateThreadInput is the data needed to open a thread.
type CreateThreadInput struct {
	Title       string
	Description string
	Tags        []string
	CourseID    *uint
	LessonID    *uint
}

// ListThreadsQuery filters a thread listing. Mine restricts the result to
// threads the actor asked or is assigned to.
type ListThreadsQuery struct {
	Status     string
	CourseID   *uint
	LessonID   *uint
	AskedBy    *uint
	AssignedTo *uint
	Tag        string
	Mine       bool
}

// ThreadView is a thread with the public identities of its participants.
// Messages is only populated by Get.
type ThreadView struct {
	domain.DoubtThread
	AskedBy    domain.PublicUser  `json:"asker"`
	Instructor *domain.PublicUser `json:"assigned_instructor"`
	Messages   []MessageView      `json:"messages,omitempty"`
}

// SimilarThread is one entry of the related-questions list.
type SimilarThread struct {
	ID     uint               `json:"id"`
	Title  string             `json:"title"`
	Status domain.DoubtStatus `json:"status"`
	Score  float64            `json:"score"`
}

func (s *DoubtService) tracer() trace.Tracer { return otel.Tracer("services/DoubtService") }

func (s *DoubtService) publish(ctx context.Context, threadID uint, event string, payload any) {
	if s.Events != nil {
		s.Events.PublishToThread(ctx, threadID, event, payload)
	}
}

// Create validates input and opens a new OPEN, unassigned thread asked by
// actor. When only a lesson is given, the course is taken from the lesson.
func (s *DoubtService) Create(ctx context.Context, actor Actor, in CreateThreadInput) (*ThreadView, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.Int64("user.id", int64(actor.ID))),
	)
	defer span.End()

	verr := &ValidationError{}
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		verr.add("title", "is required")
	case utf8.RuneCountInString(title) > s.Limits.TitleMaxRunes:
		verr.add("title", fmt.Sprintf("must be at most %d characters", s.Limits.TitleMaxRunes))
	}
	desc := normalizeText(in.Description)
	switch {
	case desc == "":
		verr.add("description", "is required")
	case utf8.RuneCountInString(desc) > s.Limits.DescriptionMaxRunes:
		verr.add("description", fmt.Sprintf("must be at most %d characters", s.Limits.DescriptionMaxRunes))
	}
	tags, tagErr := s.normalizeTags(in.Tags)
	if tagErr != "" {
		verr.add("tags", tagErr)
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	courseID := in.CourseID
	if courseID != nil {
		if _, err := repo.GetCourse(ctx, s.DB, *courseID); err != nil {
			return nil, mapNotFound(err, ErrCourseNotFound)
		}
	}
	if in.LessonID != nil {
		lesson, err := repo.GetLesson(ctx, s.DB, *in.LessonID)
		if err != nil {
			return nil, mapNotFound(err, ErrLessonNotFound)
		}
		if courseID != nil && lesson.CourseID != *courseID {
			return nil, invalid("lesson_id", "does not belong to the given course")
		}
		if courseID == nil {
			cid := lesson.CourseID
			courseID = &cid
		}
	}

	t := &domain.DoubtThread{
		Title:       title,
		Description: desc,
		Tags:        tags,
		Status:      domain.DoubtOpen,
		AskerID:     actor.ID,
		CourseID:    courseID,
		LessonID:    in.LessonID,
	}
	if err := repo.CreateThread(ctx, s.DB, t); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("thread.id", int64(t.ID)))

	views, err := s.views(ctx, s.DB, []domain.DoubtThread{*t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// blankRunRE matches runs of 3+ newlines; they collapse to one blank line.
var blankRunRE = regexp.MustCompile(`\n{3,}`)

// normalizeText is applied to free text from every ingress: CRLF and CR
// become LF, blank-line runs collapse to one, outer whitespace is trimmed.
func normalizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRunRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// normalizeTags slugifies, de-duplicates and bounds tags. The returned string
// is a validation message, empty when the tags are acceptable.
func (s *DoubtService) normalizeTags(raw []string) ([]string, string) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		t := slug.Make(strings.TrimSpace(r))
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > s.Limits.TagMaxRunes {
			return nil, fmt.Sprintf("each tag must be at most %d characters", s.Limits.TagMaxRunes)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > s.Limits.MaxTags {
		return nil, fmt.Sprintf("at most %d tags are allowed", s.Limits.MaxTags)
	}
	return out, ""
}

// Get returns the thread with its full message history ordered by sent time.
func (s *DoubtService) Get(ctx context.Context, actor Actor, threadID uint) (*ThreadView, error) {
	ctx, span := s.tracer().Start(ctx, "Get",
		trace.WithAttributes(
			attribute.Int64("thread.id", int64(threadID)),
			attribute.Int64("user.id", int64(actor.ID)),
		),
	)
	defer span.End()

	t, err := repo.GetThread(ctx, s.DB, threadID)
	if err != nil {
		return nil, mapNotFound(err, ErrThreadNotFound)
	}
	msgs, err := repo.ListMessages(ctx, s.DB, threadID)
	if err != nil {
		return nil, err
	}

	ids := participantIDs([]domain.DoubtThread{*t})
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	users, err := repo.PublicUsers(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	v := threadView(*t, users)
	v.Messages = make([]MessageView, 0, len(msgs))
	for i := range msgs {
		v.Messages = append(v.Messages, newMessageView(&msgs[i], users[msgs[i].SenderID]))
	}
	return &v, nil
}

// Exists returns ErrThreadNotFound unless threadID names a thread.
func (s *DoubtService) Exists(ctx context.Context, threadID uint) error {
	_, err := repo.GetThread(ctx, s.DB, threadID)
	return mapNotFound(err, ErrThreadNotFound)
}

// List returns a page of threads, newest first, and the total match count.
func (s *DoubtService) List(ctx context.Context, actor Actor, q ListThreadsQuery, page, pageSize int) ([]ThreadView, int64, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(actor.ID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	f, err := s.filter(actor, q)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountThreads(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ThreadView{}, 0, nil
	}
	items, err := repo.ListThreadsPage(ctx, s.DB, f, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, s.DB, items)
	return views, total, err
}

// ListStats returns the count and latest update time of the threads q
// matches. Handlers derive a weak ETag from it.
func (s *DoubtService) ListStats(ctx context.Context, actor Actor, q ListThreadsQuery) (int64, *time.Time, error) {
	f, err := s.filter(actor, q)
	if err != nil {
		return 0, nil, err
	}
	snap, err := repo.ThreadsSnapshot(ctx, s.DB, f)
	return snap.Count, snap.Latest, err
}

// Version identifies the current state of a thread and its messages. It
// changes whenever the thread row is updated or a message is posted or
// deleted. Handlers derive a weak ETag from it.
func (s *DoubtService) Version(ctx context.Context, threadID uint) (string, error) {
	t, err := repo.GetThread(ctx, s.DB, threadID)
	if err != nil {
		return "", mapNotFound(err, ErrThreadNotFound)
	}
	snap, err := repo.MessagesSnapshot(ctx, s.DB, threadID)
	if err != nil {
		return "", err
	}
	var lastNano int64
	if snap.Latest != nil {
		lastNano = snap.Latest.UnixNano()
	}
	return fmt.Sprintf("%d:%d:%d:%d", t.ID, t.UpdatedAt.UnixNano(), snap.Count, lastNano), nil
}

func (s *DoubtService) filter(actor Actor, q ListThreadsQuery) (repo.ThreadFilter, error) {
	f := repo.ThreadFilter{
		CourseID:   q.CourseID,
		LessonID:   q.LessonID,
		AskedBy:    q.AskedBy,
		AssignedTo: q.AssignedTo,
		Tag:        slug.Make(q.Tag),
	}
	if st := strings.ToUpper(strings.TrimSpace(q.Status)); st != "" {
		status := domain.DoubtStatus(st)
		if !status.Valid() {
			return f, invalid("status", "must be one of OPEN, RESOLVED, CLOSED")
		}
		f.Status = status
	}
	if q.Mine {
		id := actor.ID
		f.Participant = &id
	}
	return f, nil
}

// errReplay aborts a post whose idempotency key was already used.
var errReplay = errors.New("idempotent replay")

// PostMessage appends content to threadID on behalf of actor. Only the asker,
// the assigned instructor and admins may post; anyone else gets ErrForbidden
// and nothing is written. A responder's reply to a RESOLVED or CLOSED thread
// reopens it in the same transaction.
func (s *DoubtService) PostMessage(ctx context.Context, actor Actor, threadID uint, content string) (*MessageView, error) {
	m, _, err := s.PostMessageOnce(ctx, actor, threadID, content, "")
	return m, err
}

// PostMessageOnce is PostMessage with an optional idempotency key. When the
// key was already used by actor on this thread, the originally created
// message is returned with replayed=true and nothing new is written or
// published.
func (s *DoubtService) PostMessageOnce(ctx context.Context, actor Actor, threadID uint, content, key string) (msg *MessageView, replayed bool, err error) {
	ctx, span := s.tracer().Start(ctx, "PostMessage",
		trace.WithAttributes(
			attribute.Int64("thread.id", int64(threadID)),
			attribute.Int64("user.id", int64(actor.ID)),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer span.End()

	content = normalizeText(content)
	if content == "" {
		return nil, false, invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > s.Limits.MessageMaxRunes {
		return nil, false, invalid("content", fmt.Sprintf("must be at most %d characters", s.Limits.MessageMaxRunes))
	}

	key = strings.TrimSpace(key)
	idem := messageKey(actor.ID, threadID, key)
	if key != "" {
		if v, ok := s.replay(ctx, actor, threadID, key); ok {
			return v, true, nil
		}
	}

	var (
		view     MessageView
		reopened bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repo.GetThread(ctx, tx, threadID)
		if err != nil {
			return mapNotFound(err, ErrThreadNotFound)
		}
		if !CanPost(actor, t) {
			return ErrForbidden
		}

		m, err := repo.CreateMessage(ctx, tx, threadID, actor.ID, content)
		if err != nil {
			return err
		}
		if key != "" {
			if _, err := repo.RecordIdempotency(ctx, tx, idem, m.ID, 201, s.IdempotencyTTL); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					return errReplay
				}
				return err
			}
		}

		if _, changed := domain.ReopenOnResponderReply(t.Status, IsResponder(actor, t)); changed {
			if reopened, err = repo.ReopenThread(ctx, tx, threadID); err != nil {
				return err
			}
		} else if err := repo.TouchThread(ctx, tx, threadID, m.SentAt); err != nil {
			return err
		}

		sender, err := repo.GetUser(ctx, tx, actor.ID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		view = newMessageView(m, sender.Public())
		return nil
	})
	if errors.Is(err, errReplay) {
		if v, ok := s.replay(ctx, actor, threadID, key); ok {
			return v, true, nil
		}
		return nil, false, ErrMessageNotFound
	}
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.Int64("message.id", int64(view.ID)), attribute.Bool("thread.reopened", reopened))

	s.publish(ctx, threadID, EventReceiveMessage, view)
	if reopened {
		s.publish(ctx, threadID, EventStatusUpdated, StatusUpdate{
			ThreadID:  threadID,
			Status:    domain.DoubtOpen,
			UpdatedBy: actor.ID,
			Reopened:  true,
		})
	}
	return &view, false, nil
}

func messageScope(threadID uint) string {
	return "doubt:" + strconv.FormatUint(uint64(threadID), 10) + ":messages"
}

func messageKey(userID, threadID uint, key string) repo.IdempotencyKey {
	return repo.IdempotencyKey{UserID: userID, Scope: messageScope(threadID), Key: key}
}

// replay loads the message recorded for (actor, thread, key), if any.
func (s *DoubtService) replay(ctx context.Context, actor Actor, threadID uint, key string) (*MessageView, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, messageKey(actor.ID, threadID, key), time.Now())
	if err != nil {
		return nil, false
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.ResultID)
	if err != nil {
		return nil, false
	}
	users, err := repo.PublicUsers(ctx, s.DB, []uint{m.SenderID})
	if err != nil {
		return nil, false
	}
	v := newMessageView(m, users[m.SenderID])
	return &v, true
}

// UpdateStatus sets the thread status. Admins and the assigned instructor may
// move a thread between any two states.
func (s *DoubtService) UpdateStatus(ctx context.Context, actor Actor, threadID uint, status string) (*ThreadView, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("thread.id", int64(threadID)),
			attribute.String("status", status),
		),
	)
	defer span.End()

	next := domain.DoubtStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, invalid("status", "must be one of OPEN, RESOLVED, CLOSED")
	}

	var updated *domain.DoubtThread
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repo.GetThread(ctx, tx, threadID)
		if err != nil {
			return mapNotFound(err, ErrThreadNotFound)
		}
		if !CanUpdateStatus(actor, t) {
			return ErrForbidden
		}
		if err := repo.UpdateThreadStatus(ctx, tx, threadID, next); err != nil {
			return err
		}
		updated, err = repo.GetThread(ctx, tx, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, threadID, EventStatusUpdated, StatusUpdate{ThreadID: threadID, Status: next, UpdatedBy: actor.ID})

	views, err := s.views(ctx, s.DB, []domain.DoubtThread{*updated})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// AssignInstructor sets the thread's instructor, or clears it when
// instructorID is nil. Only admins may assign; the target must be an active
// INSTRUCTOR.
func (s *DoubtService) AssignInstructor(ctx context.Context, actor Actor, threadID uint, instructorID *uint) (*ThreadView, error) {
	ctx, span := s.tracer().Start(ctx, "AssignInstructor",
		trace.WithAttributes(attribute.Int64("thread.id", int64(threadID))),
	)
	defer span.End()

	if !CanAssign(actor) {
		return nil, ErrForbidden
	}

	var (
		updated    *domain.DoubtThread
		instructor *domain.PublicUser
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetThread(ctx, tx, threadID); err != nil {
			return mapNotFound(err, ErrThreadNotFound)
		}
		if instructorID != nil {
			u, err := repo.GetUser(ctx, tx, *instructorID)
			if err != nil {
				return mapNotFound(err, ErrUserNotFound)
			}
			if u.Role != domain.RoleInstructor {
				return invalid("instructor_id", "user is not an instructor")
			}
			if u.Status != domain.UserActive {
				return invalid("instructor_id", "instructor account is not active")
			}
			pub := u.Public()
			instructor = &pub
		}
		if err := repo.AssignThread(ctx, tx, threadID, instructorID); err != nil {
			return err
		}
		var err error
		updated, err = repo.GetThread(ctx, tx, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, threadID, EventAssigned, Assignment{ThreadID: threadID, Instructor: instructor})

	views, err := s.views(ctx, s.DB, []domain.DoubtThread{*updated})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DeleteThread removes a thread and its messages. The asker and admins may
// delete.
func (s *DoubtService) DeleteThread(ctx context.Context, actor Actor, threadID uint) error {
	ctx, span := s.tracer().Start(ctx, "DeleteThread",
		trace.WithAttributes(attribute.Int64("thread.id", int64(threadID))),
	)
	defer span.End()

	t, err := repo.GetThread(ctx, s.DB, threadID)
	if err != nil {
		return mapNotFound(err, ErrThreadNotFound)
	}
	if !CanDeleteThread(actor, t) {
		return ErrForbidden
	}
	return mapNotFound(repo.DeleteThread(ctx, s.DB, threadID), ErrThreadNotFound)
}

// DeleteMessage removes a single message. Admin only.
func (s *DoubtService) DeleteMessage(ctx context.Context, actor Actor, messageID uint) error {
	ctx, span := s.tracer().Start(ctx, "DeleteMessage",
		trace.WithAttributes(attribute.Int64("message.id", int64(messageID))),
	)
	defer span.End()

	if !CanDeleteMessage(actor) {
		return ErrForbidden
	}
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		return mapNotFound(err, ErrMessageNotFound)
	}
	if err := repo.DeleteMessage(ctx, s.DB, messageID); err != nil {
		return mapNotFound(err, ErrMessageNotFound)
	}
	s.publish(ctx, m.ThreadID, EventMessageDeleted, MessageDeleted{ThreadID: m.ThreadID, MessageID: messageID})
	return nil
}

// Similar returns up to k other threads whose title and description overlap
// the given thread's.
func (s *DoubtService) Similar(ctx context.Context, actor Actor, threadID uint, k int) ([]SimilarThread, error) {
	ctx, span := s.tracer().Start(ctx, "Similar",
		trace.WithAttributes(
			attribute.Int64("thread.id", int64(threadID)),
			attribute.Int("k", k),
		),
	)
	defer span.End()

	t, err := repo.GetThread(ctx, s.DB, threadID)
	if err != nil {
		return nil, mapNotFound(err, ErrThreadNotFound)
	}
	corpus, err := repo.ListThreadCorpus(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	docs := make([]search.Document, 0, len(corpus))
	byID := make(map[uint]domain.DoubtThread, len(corpus))
	for _, c := range corpus {
		docs = append(docs, search.Document{ID: c.ID, Text: threadText(c)})
		byID[c.ID] = c
	}
	idx := search.NewIndex(docs)

	res := idx.TopK(threadText(*t), k, t.ID)
	out := make([]SimilarThread, 0, len(res))
	for _, r := range res {
		c := byID[r.ID]
		out = append(out, SimilarThread{ID: c.ID, Title: c.Title, Status: c.Status, Score: r.Score})
	}
	return out, nil
}

func threadText(t domain.DoubtThread) string {
	return t.Title + "\n\n" + t.Description + "\n\n" + strings.Join(t.Tags, " ")
}

// views decorates threads with participant identities.
func (s *DoubtService) views(ctx context.Context, db *gorm.DB, threads []domain.DoubtThread) ([]ThreadView, error) {
	users, err := repo.PublicUsers(ctx, db, participantIDs(threads))
	if err != nil {
		return nil, err
	}
	out := make([]ThreadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadView(t, users))
	}
	return out, nil
}

func participantIDs(threads []domain.DoubtThread) []uint {
	ids := make([]uint, 0, len(threads)*2)
	for _, t := range threads {
		ids = append(ids, t.AskerID)
		if t.AssignedInstructorID != nil {
			ids = append(ids, *t.AssignedInstructorID)
		}
	}
	return ids
}

func threadView(t domain.DoubtThread, users map[uint]domain.PublicUser) ThreadView {
	v := ThreadView{DoubtThread: t, AskedBy: users[t.AskerID]}
	if t.AssignedInstructorID != nil {
		if u, ok := users[*t.AssignedInstructorID]; ok {
			v.Instructor = &u
		}
	}
	return v
}

// mapNotFound converts repo.ErrNotFound into the given service error.
func mapNotFound(err, notFound error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return notFound
	}
	return err
}
