package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/pawpal/petmail/api/errors"
	"github.com/pawpal/petmail/api/handlers"
	"github.com/pawpal/petmail/api/middleware"
	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/services/parser"
	"github.com/pawpal/petmail/services/signature"
)

const (
	signingKey = "key-test-signing"
	apiKey     = "admin-key"
	inboundKey = "inbound-key"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, email *dto.ParsedEmail) (*dto.PipelineResponse, error) {
	args := m.Called(ctx, email)
	response, _ := args.Get(0).(*dto.PipelineResponse)
	return response, args.Error(1)
}

type mockApprovals struct {
	mock.Mock
}

func (m *mockApprovals) ListPending(ctx context.Context, petID string) ([]*models.PendingApproval, error) {
	args := m.Called(ctx, petID)
	approvals, _ := args.Get(0).([]*models.PendingApproval)
	return approvals, args.Error(1)
}

func (m *mockApprovals) Approve(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error) {
	args := m.Called(ctx, approvalID)
	decision, _ := args.Get(0).(*dto.ApprovalDecision)
	return decision, args.Error(1)
}

func (m *mockApprovals) Reject(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error) {
	args := m.Called(ctx, approvalID)
	decision, _ := args.Get(0).(*dto.ApprovalDecision)
	return decision, args.Error(1)
}

type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) Upload(_ context.Context, _, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(_ context.Context, _, key string) ([]byte, error) {
	return f.objects[key], nil
}

func (f *fakeStorage) Exists(_ context.Context, _, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) Delete(_ context.Context, _, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + bucket + "/" + key + "?expires=" + strconv.Itoa(int(ttl.Seconds())), nil
}

type testServer struct {
	router    *gin.Engine
	processor *mockProcessor
	approvals *mockApprovals
	storage   *fakeStorage
}

func newTestServer() *testServer {
	return newTestServerWithTokens(nil)
}

func newTestServerWithTokens(tokens signature.TokenCache) *testServer {
	gin.SetMode(gin.TestMode)
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	ts := &testServer{
		router:    gin.New(),
		processor: &mockProcessor{},
		approvals: &mockApprovals{},
		storage:   &fakeStorage{objects: map[string][]byte{"user_1/pet_luna_pet_1/lab_results/1700000000_cbc.pdf": []byte("%PDF")}},
	}

	verifier := signature.NewSignatureVerifier(&config.MailgunConfig{WebhookSigningKey: signingKey}, tokens, log)
	apiHandlers := &handlers.APIHandlers{
		Webhooks:  handlers.NewWebhookHandler(verifier, parser.NewEmailParser(log), ts.processor, log),
		Approvals: handlers.NewApprovalsHandler(ts.approvals, log),
		Documents: handlers.NewDocumentsHandler(ts.storage, "pet-documents", time.Hour, log),
	}
	Mount(ts.router, apiHandlers, &config.AppConfig{APIKey: apiKey, InboundAPIKey: inboundKey})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func mailgunRequest(t *testing.T, sign bool) *http.Request {
	t.Helper()
	return mailgunRequestAt(t, sign, strconv.FormatInt(time.Now().Unix(), 10))
}

func mailgunRequestAt(t *testing.T, sign bool, timestamp string) *http.Request {
	t.Helper()
	token := "token-" + timestamp

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"recipient":  "luna-x7k2@pets.pawpal.app",
		"from":       "Clinic Vet <vet@clinic.com>",
		"subject":    "Blood work",
		"body-plain": "Results attached.",
		"Message-Id": "<abc123@clinic.com>",
		"timestamp":  timestamp,
		"token":      token,
		"signature":  "bad",
	}
	if sign {
		fields["signature"] = signature.Sign(timestamp, token, signingKey)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("attachment-1", "cbc.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 results"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mailgun", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var body apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMailgunWebhook_ProcessesSignedPost(t *testing.T) {
	ts := newTestServer()
	ts.processor.On("Process", mock.Anything, mock.MatchedBy(func(email *dto.ParsedEmail) bool {
		return email.RecipientAddress() == "luna-x7k2@pets.pawpal.app" &&
			email.SenderAddress() == "vet@clinic.com" &&
			len(email.Attachments) == 1 && email.Attachments[0].Filename == "cbc.pdf"
	})).Return(&dto.PipelineResponse{Success: true, Status: enum.PipelineCompleted, PetID: "pet_1"}, nil).Once()

	w := ts.do(mailgunRequest(t, true))

	assert.Equal(t, http.StatusOK, w.Code)
	var response dto.PipelineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, enum.PipelineCompleted, response.Status)
	ts.processor.AssertExpectations(t)
}

func TestMailgunWebhook_RejectsBadSignature(t *testing.T) {
	ts := newTestServer()

	w := ts.do(mailgunRequest(t, false))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Status)
	ts.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestMailgunWebhook_MapsRequestErrors(t *testing.T) {
	cases := map[string]struct {
		err     error
		code    int
		message string
	}{
		"pet not found":   {err: petmailerrors.ErrPetNotFound, code: http.StatusNotFound, message: petmailerrors.ErrPetNotFound.Error()},
		"missing sender":  {err: petmailerrors.ErrMissingSender, code: http.StatusBadRequest, message: petmailerrors.ErrMissingSender.Error()},
		"database outage": {err: errors.New("dial tcp: connection refused"), code: http.StatusInternalServerError, message: "internal error"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer()
			ts.processor.On("Process", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			w := ts.do(mailgunRequest(t, true))

			assert.Equal(t, tc.code, w.Code)
			body := decodeError(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestMailgunWebhook_FailedPipelineIsNotRetried(t *testing.T) {
	ts := newTestServer()
	ts.processor.On("Process", mock.Anything, mock.Anything).
		Return(&dto.PipelineResponse{Success: false, Status: enum.PipelineFailed}, nil).Once()

	w := ts.do(mailgunRequest(t, true))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
}

type memoryTokens struct {
	spent map[string]bool
}

func (m *memoryTokens) Seen(_ context.Context, token string) (bool, error) {
	return m.spent[token], nil
}

func (m *memoryTokens) Remember(_ context.Context, token string) error {
	m.spent[token] = true
	return nil
}

func TestMailgunWebhook_RedeliveryAfterServerErrorIsAccepted(t *testing.T) {
	tokens := &memoryTokens{spent: map[string]bool{}}
	ts := newTestServerWithTokens(tokens)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	ts.processor.On("Process", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused")).Once()
	w := ts.do(mailgunRequestAt(t, true, timestamp))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, tokens.spent)

	ts.processor.On("Process", mock.Anything, mock.Anything).
		Return(&dto.PipelineResponse{Success: true, Status: enum.PipelineCompleted}, nil).Once()
	w = ts.do(mailgunRequestAt(t, true, timestamp))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, tokens.spent["token-"+timestamp])

	w = ts.do(mailgunRequestAt(t, true, timestamp))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	ts.processor.AssertNumberOfCalls(t, "Process", 2)
}

func rawInboundRequest(key string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(middleware.InboundKeyHeader, key)
	}
	return req
}

func TestRawInbound_RequiresKey(t *testing.T) {
	ts := newTestServer()

	assert.Equal(t, http.StatusUnauthorized, ts.do(rawInboundRequest("", `{"raw":"eA=="}`)).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(rawInboundRequest("wrong", `{"raw":"eA=="}`)).Code)
}

func TestRawInbound_RejectsBadPayloads(t *testing.T) {
	ts := newTestServer()

	assert.Equal(t, http.StatusBadRequest, ts.do(rawInboundRequest(inboundKey, `{"recipient":"a@b.c"}`)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(rawInboundRequest(inboundKey, `{"raw":"%%%not base64%%%"}`)).Code)
	ts.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestRawInbound_EnvelopeRecipientWins(t *testing.T) {
	ts := newTestServer()
	message := strings.Join([]string{
		"From: Clinic Vet <vet@clinic.com>",
		"To: Front Desk <desk@clinic.com>",
		"Subject: Vaccination record",
		"Message-ID: <vax-1@clinic.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Rabies booster given today.",
	}, "\r\n")
	payload, err := json.Marshal(handlers.InboundRequest{
		Recipient: "luna-x7k2@pets.pawpal.app",
		Sender:    "bounce@clinic.com",
		Raw:       base64.StdEncoding.EncodeToString([]byte(message)),
	})
	require.NoError(t, err)

	ts.processor.On("Process", mock.Anything, mock.MatchedBy(func(email *dto.ParsedEmail) bool {
		return email.RecipientAddress() == "luna-x7k2@pets.pawpal.app" &&
			email.SenderAddress() == "vet@clinic.com" &&
			email.Subject == "Vaccination record"
	})).Return(&dto.PipelineResponse{Success: true, Status: enum.PipelineNoAttachments}, nil).Once()

	w := ts.do(rawInboundRequest(inboundKey, string(payload)))

	assert.Equal(t, http.StatusOK, w.Code)
	ts.processor.AssertExpectations(t)
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(middleware.APIKeyHeader, apiKey)
	return req
}

func TestAdminAPI_RequiresKey(t *testing.T) {
	ts := newTestServer()

	w := ts.do(httptest.NewRequest(http.MethodGet, "/v1/pets/pet_1/approvals", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Missing API key")
}

func TestApprovals_List(t *testing.T) {
	ts := newTestServer()
	ts.approvals.On("ListPending", mock.Anything, "pet_1").Return([]*models.PendingApproval{
		{ID: "appr_1", PetID: "pet_1", SenderEmail: "new@clinic.com", Status: enum.ApprovalPending},
	}, nil).Once()
	ts.approvals.On("ListPending", mock.Anything, "pet_2").Return(nil, nil).Once()

	w := ts.do(adminRequest(http.MethodGet, "/v1/pets/pet_1/approvals"))
	require.Equal(t, http.StatusOK, w.Code)
	var response handlers.ListApprovalsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Approvals, 1)
	assert.Equal(t, "new@clinic.com", response.Approvals[0].SenderEmail)

	empty := ts.do(adminRequest(http.MethodGet, "/v1/pets/pet_2/approvals"))
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Contains(t, empty.Body.String(), `"approvals":[]`)
}

func TestApprovals_ApproveAndReject(t *testing.T) {
	ts := newTestServer()
	ts.approvals.On("Approve", mock.Anything, "appr_1").Return(&dto.ApprovalDecision{
		ApprovalID:  "appr_1",
		Status:      enum.ApprovalApproved,
		SenderEmail: "new@clinic.com",
		Reprocessed: &dto.PipelineResponse{Success: true, Status: enum.PipelineCompleted},
	}, nil).Once()
	ts.approvals.On("Reject", mock.Anything, "appr_1").Return(nil, petmailerrors.ErrApprovalAlreadyResolved).Once()
	ts.approvals.On("Reject", mock.Anything, "missing").Return(nil, petmailerrors.ErrApprovalNotFound).Once()

	approved := ts.do(adminRequest(http.MethodPost, "/v1/approvals/appr_1/approve"))
	assert.Equal(t, http.StatusOK, approved.Code)
	var decision dto.ApprovalDecision
	require.NoError(t, json.Unmarshal(approved.Body.Bytes(), &decision))
	assert.Equal(t, enum.ApprovalApproved, decision.Status)
	require.NotNil(t, decision.Reprocessed)
	assert.Equal(t, enum.PipelineCompleted, decision.Reprocessed.Status)

	assert.Equal(t, http.StatusConflict, ts.do(adminRequest(http.MethodPost, "/v1/approvals/appr_1/reject")).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(adminRequest(http.MethodPost, "/v1/approvals/missing/reject")).Code)
	ts.approvals.AssertExpectations(t)
}

func TestDocuments_SignedURL(t *testing.T) {
	ts := newTestServer()
	path := "user_1/pet_luna_pet_1/lab_results/1700000000_cbc.pdf"

	w := ts.do(adminRequest(http.MethodGet, "/v1/documents/url?user_id=user_1&path="+path))

	require.Equal(t, http.StatusOK, w.Code)
	var response dto.SignedURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "https://storage.test/pet-documents/"+path+"?expires=3600", response.URL)
	assert.Equal(t, int64(3600), response.ExpiresIn)
}

func TestDocuments_SignedURLChecksOwnership(t *testing.T) {
	ts := newTestServer()
	path := "user_1/pet_luna_pet_1/lab_results/1700000000_cbc.pdf"

	assert.Equal(t, http.StatusForbidden, ts.do(adminRequest(http.MethodGet, "/v1/documents/url?user_id=user_2&path="+path)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(adminRequest(http.MethodGet, "/v1/documents/url?path="+path)).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(adminRequest(http.MethodGet, "/v1/documents/url?user_id=user_1&path=user_1/missing.pdf")).Code)
}
