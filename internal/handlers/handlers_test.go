package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/handlers"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
	"github.com/Shimizu-Technology/docvault-api/internal/router"
	"github.com/Shimizu-Technology/docvault-api/internal/search"
	"github.com/Shimizu-Technology/docvault-api/internal/services/extraction"
	"github.com/Shimizu-Technology/docvault-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docvault-api/internal/services/worker"
	"github.com/Shimizu-Technology/docvault-api/internal/storage"
	"github.com/Shimizu-Technology/docvault-api/internal/testutil"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t      *testing.T
	db     *database.DB
	index  *search.Index
	engine *gin.Engine
}

// newServer wires the full router against SQLite and a temp-dir store.
// With workers > 0 a real pool runs queued jobs.
func newServer(t *testing.T, workers int) *server {
	t.Helper()
	db := testutil.NewDB(t)
	files, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	index, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	runner := extraction.NewRunner(db, files, pdf.NewExtractor(nil, nil), nil)
	runner.SetIndexer(index)

	h := handlers.NewHandler(db, files, pdf.NewValidator(0, false, nil), runner, testSecret, nil)
	h.Search = index

	if workers > 0 {
		pool := worker.NewPool(workers, 10, runner, nil)
		runner.SetScheduler(pool)
		pool.Start()
		t.Cleanup(pool.Stop)
		h.Worker = pool
	}

	return &server{t: t, db: db, index: index, engine: router.Setup(h, nil, nil)}
}

func (s *server) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

// register creates an account and returns its token.
func (s *server) register(email string) string {
	w := s.json(http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Email: email, Password: "correct-horse", Name: "Test",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.AuthResponse
	decode(s.t, w, &resp)
	return resp.Token
}

func (s *server) upload(token, filename string, data []byte, fields map[string][]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write(data)
	require.NoError(s.t, err)
	for k, values := range fields {
		for _, v := range values {
			require.NoError(s.t, mw.WriteField(k, v))
		}
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req, token)
}

func (s *server) uploadOK(token string, data []byte) models.Document {
	w := s.upload(token, "invoice.pdf", data, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var doc models.Document
	decode(s.t, w, &doc)
	return doc
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func invoicePDF() []byte {
	return testutil.BuildPDF(testutil.PDF{Title: "Invoice one", Author: "Alice", Pages: []string{"Total due 42"}})
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t, 0)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Database)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t, 0)
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t, 0)
	s.register("alice@example.com")

	w := s.json(http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Email: "alice@example.com", Password: "correct-horse", Name: "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodPost, "/api/v1/auth/login", "", models.LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.AuthResponse
	decode(t, w, &resp)

	w = s.json(http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	decode(t, w, &me)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestUploadAndExtractSync(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")

	doc := s.uploadOK(token, invoicePDF())
	assert.False(t, doc.IsProcessed)
	assert.Equal(t, "invoice.pdf", doc.OriginalFilename)
	assert.Equal(t, "/api/v1/documents/"+doc.ID+"/download", doc.FileURL)

	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.Document
	decode(t, w, &got)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, "Invoice one", got.Title)
	assert.Equal(t, "Alice", got.Author)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 1, *got.PageCount)
	assert.Regexp(t, `^[0-9a-f]{32}$`, got.MD5)

	w = s.json(http.MethodGet, "/api/v1/audit-logs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs models.PaginatedResponse[models.AuditLog]
	decode(t, w, &logs)
	actions := map[models.AuditAction]models.AuditLog{}
	for _, l := range logs.Data {
		actions[l.Action] = l
	}
	require.Contains(t, actions, models.AuditUpload)
	require.Contains(t, actions, models.AuditExtract)
	assert.Equal(t, false, actions[models.AuditExtract].Meta["async"])
}

func TestUploadRejections(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")

	tests := []struct {
		name     string
		filename string
		data     []byte
		reason   pdf.Reason
	}{
		{"not a pdf body", "notpdf.pdf", []byte("hello"), pdf.InvalidSignature},
		{"wrong extension", "invoice.txt", invoicePDF(), pdf.InvalidExtension},
		{"too large", "big.pdf", append([]byte("%PDF-1.4\n"), make([]byte, pdf.DefaultMaxSize)...), pdf.TooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(token, tt.filename, tt.data, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var resp models.ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, string(tt.reason), resp.Error)
		})
	}

	w := s.json(http.MethodGet, "/api/v1/documents", token, nil)
	var page models.PaginatedResponse[models.Document]
	decode(t, w, &page)
	assert.Zero(t, page.TotalItems, "rejected uploads create no documents")
}

func TestExtractAsyncQueuesJob(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")
	doc := s.uploadOK(token, invoicePDF())

	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract?async=true", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted models.ExtractionAccepted
	decode(t, w, &accepted)
	assert.Equal(t, models.JobQueued, accepted.Status)
	require.NotEmpty(t, accepted.JobID)
	assert.Nil(t, accepted.Job.StartedAt)
	assert.Nil(t, accepted.Job.FinishedAt)

	w = s.json(http.MethodGet, "/api/v1/jobs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs models.PaginatedResponse[models.ExtractionJob]
	decode(t, w, &jobs)
	require.Len(t, jobs.Data, 1)
	assert.Equal(t, accepted.JobID, jobs.Data[0].ID)
	assert.Equal(t, models.JobQueued, jobs.Data[0].Status)

	w = s.json(http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil)
	var stored models.Document
	decode(t, w, &stored)
	assert.False(t, stored.IsProcessed)
}

func TestExtractAsyncRunsOnWorkers(t *testing.T) {
	s := newServer(t, 2)
	token := s.register("alice@example.com")
	doc := s.uploadOK(token, invoicePDF())

	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract?async=1", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted models.ExtractionAccepted
	decode(t, w, &accepted)

	require.Eventually(t, func() bool {
		w := s.json(http.MethodGet, "/api/v1/jobs/"+accepted.JobID, token, nil)
		var job models.ExtractionJob
		_ = json.Unmarshal(w.Body.Bytes(), &job)
		return job.Status == models.JobSuccess
	}, 5*time.Second, 20*time.Millisecond)

	w = s.json(http.MethodGet, "/api/v1/search?q=invoice", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var results struct {
		Results []models.SearchHit `json:"results"`
	}
	decode(t, w, &results)
	require.Len(t, results.Results, 1)
	assert.Equal(t, doc.ID, results.Results[0].Document.ID)
}

func TestSameBytesSameFingerprint(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")
	data := invoicePDF()

	var md5s []string
	for i := 0; i < 2; i++ {
		doc := s.uploadOK(token, data)
		w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got models.Document
		decode(t, w, &got)
		md5s = append(md5s, got.MD5)
	}
	assert.NotEmpty(t, md5s[0])
	assert.Equal(t, md5s[0], md5s[1])
}

func TestExtractFailureLeavesDocumentUnchanged(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")
	doc := s.uploadOK(token, []byte("%PDF-1.4\nnot really a pdf"))

	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", token, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, "extraction_failed", resp.Error)
	assert.NotEmpty(t, resp.Detail)

	w = s.json(http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil)
	var stored models.Document
	decode(t, w, &stored)
	assert.False(t, stored.IsProcessed)
	assert.Empty(t, stored.MD5)
	assert.Nil(t, stored.PageCount)

	w = s.json(http.MethodGet, "/api/v1/jobs?status=FAILED", token, nil)
	var jobs models.PaginatedResponse[models.ExtractionJob]
	decode(t, w, &jobs)
	require.Len(t, jobs.Data, 1)
	require.NotNil(t, jobs.Data[0].ErrorMessage)
	assert.Equal(t, resp.Detail, *jobs.Data[0].ErrorMessage)

	w = s.json(http.MethodGet, "/api/v1/jobs?status=DONE", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOwnerIsolation(t *testing.T) {
	s := newServer(t, 0)
	alice := s.register("alice@example.com")
	bob := s.register("bob@example.com")

	doc := s.uploadOK(alice, invoicePDF())
	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract?async=true", alice, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted models.ExtractionAccepted
	decode(t, w, &accepted)

	for _, path := range []string{
		"/api/v1/documents/" + doc.ID,
		"/api/v1/documents/" + doc.ID + "/download",
		"/api/v1/jobs/" + accepted.JobID,
	} {
		w := s.json(http.MethodGet, path, bob, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w = s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.json(http.MethodDelete, "/api/v1/documents/"+doc.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(http.MethodGet, "/api/v1/jobs", bob, nil)
	var jobs models.PaginatedResponse[models.ExtractionJob]
	decode(t, w, &jobs)
	assert.Empty(t, jobs.Data)
}

func TestFoldersTagsAndDocumentEdits(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")
	other := s.register("bob@example.com")

	w := s.json(http.MethodPost, "/api/v1/folders", token, models.NameRequest{Name: "Invoices"})
	require.Equal(t, http.StatusCreated, w.Code)
	var folder models.Folder
	decode(t, w, &folder)

	w = s.json(http.MethodPost, "/api/v1/tags", token, models.NameRequest{Name: "paid"})
	require.Equal(t, http.StatusCreated, w.Code)
	var tag models.Tag
	decode(t, w, &tag)
	w = s.json(http.MethodPost, "/api/v1/tags", token, models.NameRequest{Name: "paid"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(http.MethodPost, "/api/v1/tags", other, models.NameRequest{Name: "bobs"})
	var bobsTag models.Tag
	decode(t, w, &bobsTag)

	// Someone else's tag is rejected at upload.
	w = s.upload(token, "a.pdf", invoicePDF(), map[string][]string{"tag_ids": {bobsTag.ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(token, "a.pdf", invoicePDF(), map[string][]string{
		"folder_id": {folder.ID},
		"tag_ids":   {tag.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc models.Document
	decode(t, w, &doc)
	require.NotNil(t, doc.Folder)
	assert.Equal(t, "Invoices", doc.Folder.Name)
	require.Len(t, doc.Tags, 1)
	assert.Equal(t, "paid", doc.Tags[0].Name)

	title := "Renamed"
	none := ""
	w = s.json(http.MethodPatch, "/api/v1/documents/"+doc.ID, token, models.UpdateDocumentRequest{Title: &title, FolderID: &none})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var edited models.Document
	decode(t, w, &edited)
	assert.Equal(t, "Renamed", edited.Title)
	assert.Nil(t, edited.Folder)
	assert.Len(t, edited.Tags, 1, "tags untouched when tag_ids is omitted")

	w = s.json(http.MethodGet, "/api/v1/documents?tag=paid", token, nil)
	var page models.PaginatedResponse[models.Document]
	decode(t, w, &page)
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, doc.ID, page.Data[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)

	w = s.json(http.MethodDelete, "/api/v1/tags/"+tag.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.json(http.MethodGet, "/api/v1/tags/"+tag.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadAndDelete(t *testing.T) {
	s := newServer(t, 0)
	token := s.register("alice@example.com")
	data := invoicePDF()
	doc := s.uploadOK(token, data)

	w := s.json(http.MethodPost, "/api/v1/documents/"+doc.ID+"/extract", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.json(http.MethodGet, "/api/v1/documents/"+doc.ID+"/download", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, data, w.Body.Bytes())
	assert.Equal(t, pdf.MIMEType, w.Header().Get("Content-Type"))

	w = s.json(http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.json(http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Jobs outlive their document.
	w = s.json(http.MethodGet, "/api/v1/jobs", token, nil)
	var jobs models.PaginatedResponse[models.ExtractionJob]
	decode(t, w, &jobs)
	require.Len(t, jobs.Data, 1)
	assert.Nil(t, jobs.Data[0].DocumentID)
	assert.Equal(t, models.JobSuccess, jobs.Data[0].Status)

	n, err := s.index.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}
