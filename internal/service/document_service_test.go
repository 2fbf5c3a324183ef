package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal-api/internal/dto"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
	"github.com/noah-isme/student-portal-api/pkg/jobs"
	"github.com/noah-isme/student-portal-api/pkg/storage"
)

type fakeDocumentRepo struct {
	docs      map[string]*models.Document
	createErr error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*models.Document{}}
}

func (f *fakeDocumentRepo) List(_ context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	out := make([]models.Document, 0, len(f.docs))
	for _, d := range f.docs {
		if filter.SubjectID != "" && (d.SubjectID == nil || *d.SubjectID != filter.SubjectID) {
			continue
		}
		if filter.Standard != nil && (d.Standard == nil || *d.Standard != *filter.Standard) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *models.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentRepo) Count(context.Context) (int, error) {
	return len(f.docs), nil
}

type capturingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *capturingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type documentFixture struct {
	svc      *DocumentService
	repo     *fakeDocumentRepo
	files    *storage.LocalStorage
	dir      string
	queue    *capturingQueue
	metrics  *recordingMetrics
	subjects *fakeSubjectRepo
}

func newDocumentFixture(t *testing.T, kind models.DocumentKind) *documentFixture {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	f := &documentFixture{
		repo:     newFakeDocumentRepo(),
		files:    files,
		dir:      dir,
		queue:    &capturingQueue{},
		metrics:  newRecordingMetrics(),
		subjects: &fakeSubjectRepo{subjects: []models.Subject{{ID: "subj-1", Name: "Physics"}}},
	}
	f.svc = NewDocumentService(kind, f.repo, f.subjects, files, storage.NewSignedURLSigner("sign", time.Minute), f.queue, nil, nil, f.metrics, DocumentConfig{
		MaxFileSizeBytes: 64,
		URLPrefix:        "/api/v1",
	})
	return f
}

func upload(name, body string) dto.DocumentUpload {
	return dto.DocumentUpload{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestDocumentUploadStoresFileAndRow(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	standard := 10

	resp, err := f.svc.Upload(context.Background(), dto.CreateDocumentRequest{
		Title:     " Kinematics ",
		SubjectID: "subj-1",
		Standard:  &standard,
	}, upload("../week 1 notes.pdf", "%PDF-1.4 body"), teacherClaims)
	require.NoError(t, err)

	assert.Equal(t, "Kinematics", resp.Title)
	assert.Equal(t, models.DocumentKindMaterial, resp.Kind)
	assert.Equal(t, "week 1 notes.pdf", resp.OriginalName)
	assert.Equal(t, "application/pdf", resp.MimeType)
	assert.Equal(t, int64(13), resp.SizeBytes)
	assert.Regexp(t, regexp.MustCompile(`^materials/\d{14}_[0-9a-f]{8}_week_1_notes\.pdf$`), resp.Filename)
	assert.True(t, strings.HasPrefix(resp.ViewURL, "/api/v1/materials/"+resp.ID+"/view?token="))
	assert.True(t, strings.HasPrefix(resp.DownloadURL, "/api/v1/materials/"+resp.ID+"/download?token="))

	content, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(resp.Filename)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(content))
	assert.Equal(t, 1, f.metrics.uploads[models.DocumentKindMaterial])
}

func TestDocumentUploadRejections(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindAssignment)
	ctx := context.Background()
	req := dto.CreateDocumentRequest{Title: "Homework"}

	_, err := f.svc.Upload(ctx, req, upload("hw.pdf", "x"), claimsFor("s-1", models.RoleStudent))
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Upload(ctx, req, upload("hw.exe", "x"), teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, req, upload("hw.pdf", strings.Repeat("x", 65)), teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	lying := dto.DocumentUpload{Filename: "hw.pdf", Size: 1, Content: strings.NewReader(strings.Repeat("x", 100))}
	_, err = f.svc.Upload(ctx, req, lying, teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, dto.CreateDocumentRequest{}, upload("hw.pdf", "x"), teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Homework", SubjectID: "nope"}, upload("hw.pdf", "x"), teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	bad := 13
	_, err = f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Homework", Standard: &bad}, upload("hw.pdf", "x"), teacherClaims)
	assertAppError(t, err, appErrors.ErrValidation)

	entries, err := os.ReadDir(filepath.Join(f.dir, "assignments"))
	if err == nil {
		assert.Empty(t, entries)
	}
	assert.Empty(t, f.repo.docs)
}

func TestDocumentUploadRemovesFileWhenInsertFails(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.Upload(context.Background(), dto.CreateDocumentRequest{Title: "Notes"}, upload("notes.csv", "a,b"), adminClaims)
	assertAppError(t, err, appErrors.ErrInternal)

	entries, err := os.ReadDir(filepath.Join(f.dir, "materials"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentOpenWithSignedToken(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	ctx := context.Background()
	student := claimsFor("s-1", models.RoleStudent)

	created, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Notes"}, upload("notes.pdf", "content"), teacherClaims)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, created.ID, student)
	require.NoError(t, err)

	dl, err := f.svc.Open(ctx, created.ID, tokenFrom(t, got.ViewURL), true, student)
	require.NoError(t, err)
	defer dl.Content.Close()
	assert.True(t, dl.Inline)
	body, err := io.ReadAll(dl.Content)
	require.NoError(t, err)
	assert.Equal(t, "content", string(body))

	_, err = f.svc.Open(ctx, created.ID, "garbage", false, student)
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Open(ctx, created.ID, tokenFrom(t, got.ViewURL), false, nil)
	assertAppError(t, err, appErrors.ErrUnauthorized)

	_, err = f.svc.Open(ctx, "missing", tokenFrom(t, got.ViewURL), false, student)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestDocumentOpenRejectsTokenForOtherDocument(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "One"}, upload("one.pdf", "1"), teacherClaims)
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Two"}, upload("two.pdf", "2"), teacherClaims)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, second.ID, tokenFrom(t, first.DownloadURL), false, teacherClaims)
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestDocumentOpenMissingFileIsNotFound(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	ctx := context.Background()

	created, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Notes"}, upload("notes.pdf", "content"), teacherClaims)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, filepath.FromSlash(created.Filename))))

	_, err = f.svc.Open(ctx, created.ID, tokenFrom(t, created.DownloadURL), false, teacherClaims)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestDocumentDeleteQueuesCleanup(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	ctx := context.Background()

	created, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Notes"}, upload("notes.pdf", "content"), teacherClaims)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, created.ID, claimsFor("s-1", models.RoleStudent))
	assertAppError(t, err, appErrors.ErrForbidden)

	deleted, err := f.svc.Delete(ctx, created.ID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Empty(t, f.repo.docs)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, JobTypeFileCleanup, f.queue.jobs[0].Type)
	assert.Equal(t, created.Filename, f.queue.jobs[0].Payload)

	_, err = f.svc.Delete(ctx, created.ID, adminClaims)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestDocumentDeleteRemovesInlineWhenQueueRejects(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	f.queue.err = jobs.ErrQueueFull
	ctx := context.Background()

	created, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Notes"}, upload("notes.pdf", "content"), teacherClaims)
	require.NoError(t, err)
	_, err = f.svc.Delete(ctx, created.ID, teacherClaims)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.dir, filepath.FromSlash(created.Filename)))
	assert.True(t, os.IsNotExist(err))
}

func TestDocumentListFiltersAndOrders(t *testing.T) {
	f := newDocumentFixture(t, models.DocumentKindMaterial)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	seven, ten := 7, 10
	_, err := f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "Old", Standard: &seven}, upload("a.pdf", "a"), teacherClaims)
	require.NoError(t, err)
	_, err = f.svc.Upload(ctx, dto.CreateDocumentRequest{Title: "New", Standard: &ten, SubjectID: "subj-1"}, upload("b.pdf", "b"), teacherClaims)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, dto.DocumentListQuery{}, claimsFor("s-1", models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "New", all[0].Title)
	assert.Equal(t, "Old", all[1].Title)

	filtered, err := f.svc.List(ctx, dto.DocumentListQuery{Standard: &seven}, teacherClaims)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Old", filtered[0].Title)

	_, err = f.svc.List(ctx, dto.DocumentListQuery{}, nil)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\plan.docx`: "plan.docx",
		"ujian akhir (v2).pptx": "ujian_akhir__v2_.pptx",
		"...":                   "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestFileCleanupHandler(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	_, err = files.SaveStream("materials/a.pdf", bytes.NewBufferString("x"))
	require.NoError(t, err)

	handler := NewFileCleanupHandler(files, nil)
	require.NoError(t, handler(context.Background(), jobs.Job{ID: "1", Payload: "materials/a.pdf"}))
	_, err = os.Stat(filepath.Join(dir, "materials", "a.pdf"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, handler(context.Background(), jobs.Job{ID: "2", Payload: "materials/a.pdf"}))
	assert.Error(t, handler(context.Background(), jobs.Job{ID: "3", Payload: "../escape"}))
}
