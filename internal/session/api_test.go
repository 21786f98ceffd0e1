package session

import (
	"context"
	stderrors "errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/questionnaire"
)

// ==========================
// Mock Implementations
// ==========================

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitInquiry(ctx context.Context, c *questionnaire.Controller) error {
	return m.Called(c).Error(0)
}

func (m *MockSubmitter) AcceptResult(ctx context.Context, c *questionnaire.Controller) (string, error) {
	args := m.Called(c)
	return args.String(0), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

type viewBody struct {
	SessionID      string                        `json:"sessionId"`
	Step           questionnaire.Step            `json:"step"`
	Steps          []questionnaire.Step          `json:"steps"`
	CanAdvance     bool                          `json:"canAdvance"`
	Progress       questionnaire.Progress        `json:"progress"`
	Classification *questionnaire.Classification `json:"classification"`
	Answers        questionnaire.Answers         `json:"answers"`
	Rejected       *rejection                    `json:"rejected"`
}

type errorBody struct {
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func setupAPI(t *testing.T) (*API, *Registry, *MockSubmitter) {
	registry := NewRegistry(RegistryOptions{Logger: logger.NewTestLogger(t)})
	submitter := new(MockSubmitter)
	return NewAPI(registry, submitter, logger.NewTestLogger(t)), registry, submitter
}

func do(t *testing.T, api *API, method, path, body string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if body != "" {
		req.SetBodyString(body)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	api.Handler(&ctx)
	return &ctx
}

func decodeView(t *testing.T, ctx *fasthttp.RequestCtx) viewBody {
	t.Helper()
	var v viewBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v), string(ctx.Response.Body()))
	return v
}

func decodeError(t *testing.T, ctx *fasthttp.RequestCtx) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &e), string(ctx.Response.Body()))
	return e
}

func createSession(t *testing.T, api *API) string {
	t.Helper()
	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions", "")
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	return decodeView(t, ctx).SessionID
}

func answer(t *testing.T, api *API, id, body string) viewBody {
	t.Helper()
	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/answers", body)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	return decodeView(t, ctx)
}

// ==========================
// Session Lifecycle Tests
// ==========================

func TestAPI_CreateAndGet(t *testing.T) {
	api, _, _ := setupAPI(t)

	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions", "")
	assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	created := decodeView(t, ctx)
	assert.Equal(t, questionnaire.StepHousehold, created.Step)
	assert.Equal(t, questionnaire.Progress{Current: 1, Total: 5}, created.Progress)

	got := decodeView(t, do(t, api, fasthttp.MethodGet, "/v1/sessions/"+created.SessionID, ""))
	assert.Equal(t, created.SessionID, got.SessionID)
}

func TestAPI_UnknownSession(t *testing.T) {
	api, _, _ := setupAPI(t)

	ctx := do(t, api, fasthttp.MethodGet, "/v1/sessions/nope", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, string(errors.ErrCodeSessionNotFound), decodeError(t, ctx).Code)
}

func TestAPI_Delete(t *testing.T) {
	api, registry, _ := setupAPI(t)
	id := createSession(t, api)

	ctx := do(t, api, fasthttp.MethodDelete, "/v1/sessions/"+id, "")
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, 0, registry.Len())

	ctx = do(t, api, fasthttp.MethodDelete, "/v1/sessions/"+id, "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, do(t, api, fasthttp.MethodGet, "/v1/sessions/"+id+"/next", "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, do(t, api, fasthttp.MethodGet, "/v1/sessions", "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusNotFound, do(t, api, fasthttp.MethodGet, "/v2/other", "").Response.StatusCode())
}

// ==========================
// Answer Tests
// ==========================

func TestAPI_ScenarioA_OverHTTP(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)

	v := answer(t, api, id, `{"field":"householdType","value":"individual"}`)
	assert.Equal(t, questionnaire.StepEmployment, v.Step)

	v = answer(t, api, id, `{"toggle":"employed"}`)
	assert.True(t, v.CanAdvance)

	v = decodeView(t, do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/next", ""))
	assert.Equal(t, questionnaire.StepAssets, v.Step)

	answer(t, api, id, `{"field":"assets","value":["securities"]}`)
	v = answer(t, api, id, `{"field":"securitiesOver10Positions","value":false}`)
	assert.True(t, v.CanAdvance)

	do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/next", "")
	v = answer(t, api, id, `{"field":"foreignIncomeOrAssets","value":false}`)
	assert.Equal(t, questionnaire.StepDocumentReadiness, v.Step)

	v = answer(t, api, id, `{"field":"documentReadiness","value":"complete"}`)
	assert.Equal(t, questionnaire.StepResult, v.Step)
	require.NotNil(t, v.Classification)
	assert.Equal(t, questionnaire.TierBasic, v.Classification.Tier)
	require.NotNil(t, v.Classification.Price)
	assert.Equal(t, questionnaire.PriceBasic, *v.Classification.Price)
}

func TestAPI_AdjustPropertyCounts(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)

	answer(t, api, id, `{"field":"householdType","value":"couple"}`)
	answer(t, api, id, `{"field":"employmentSituations","value":["employed"]}`)
	do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/next", "")
	answer(t, api, id, `{"toggle":"property"}`)

	answer(t, api, id, `{"adjust":"ownerOccupiedCount","delta":1}`)
	v := answer(t, api, id, `{"adjust":"rentedCount","delta":1}`)
	assert.Equal(t, questionnaire.PropertyDetail{OwnerOccupied: 1, Rented: 1}, v.Answers.Property)

	answer(t, api, id, `{"adjust":"rentedCount","delta":-1}`)
	v = answer(t, api, id, `{"adjust":"rentedCount","delta":-1}`)
	assert.Equal(t, 0, v.Answers.Property.Rented, "counters never go below zero")
	assert.Nil(t, v.Rejected)
}

func TestAPI_RejectedPatchIsNoOp(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)

	tests := []struct {
		name string
		body string
		code errors.ErrorCode
	}{
		{"prerequisite unmet", `{"field":"foreignIncomeOrAssets","value":true}`, errors.ErrCodePrerequisiteUnmet},
		{"invalid enum value", `{"field":"householdType","value":"commune"}`, errors.ErrCodeInvalidAnswers},
		{"wrong value type", `{"field":"needsBookkeeping","value":"yes"}`, errors.ErrCodeInvalidAnswers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := answer(t, api, id, tt.body)
			require.NotNil(t, v.Rejected)
			assert.Equal(t, string(tt.code), v.Rejected.Code)
			assert.Equal(t, questionnaire.StepHousehold, v.Step)
			assert.Equal(t, questionnaire.Answers{}, v.Answers)
		})
	}
}

func TestAPI_MalformedBodies(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)

	bodies := []string{
		`not json`,
		`{}`,
		`{"field":"unknownField","value":1}`,
		`{"toggle":"pets"}`,
		`{"adjust":"rentedCount","delta":5}`,
		`{"field":"assets","value":["crypto"],"toggle":"crypto"}`,
		`{"field":"assets","value":["crypto"],"extra":true}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/answers", body)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			assert.Equal(t, string(errors.ErrCodeInvalidRequest), decodeError(t, ctx).Code)
		})
	}
}

// ==========================
// Navigation Tests
// ==========================

func TestAPI_BackRestartAndGoto(t *testing.T) {
	api, _, _ := setupAPI(t)
	id := createSession(t, api)
	answer(t, api, id, `{"field":"householdType","value":"individual"}`)

	v := decodeView(t, do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/back", ""))
	assert.Equal(t, questionnaire.StepHousehold, v.Step)

	v = decodeView(t, do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/goto", `{"step":"employment"}`))
	assert.Equal(t, questionnaire.StepEmployment, v.Step)

	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/goto", `{"step":"documentReadiness"}`)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, string(errors.ErrCodePrerequisiteUnmet), decodeError(t, ctx).Code)

	ctx = do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/goto", `{"step":"lobby"}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	v = decodeView(t, do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/restart", ""))
	assert.Equal(t, questionnaire.StepHousehold, v.Step)
	assert.Equal(t, questionnaire.Answers{}, v.Answers)
}

// ==========================
// Submission Tests
// ==========================

func TestAPI_Order(t *testing.T) {
	api, _, submitter := setupAPI(t)
	id := createSession(t, api)

	submitter.On("AcceptResult", mock.Anything).Return("https://checkout.example/pay?order=1", nil).Once()

	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/order", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var body orderResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "https://checkout.example/pay?order=1", body.Redirect)
	submitter.AssertExpectations(t)
}

func TestAPI_SubmissionErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"collaborator failure", errors.NewInquirySubmitFailedError(stderrors.New("crm down")), fasthttp.StatusBadGateway, "INQUIRY_SUBMIT_FAILED", true},
		{"not ready", errors.NewSubmissionNotReadyError("wrong step"), fasthttp.StatusConflict, "SUBMISSION_NOT_READY", false},
		{"in flight", errors.NewSubmissionInFlightError(), fasthttp.StatusConflict, "SUBMISSION_IN_FLIGHT", true},
		{"already completed", errors.NewSubmissionCompletedError("inquiry"), fasthttp.StatusConflict, "SUBMISSION_COMPLETED", false},
		{"plain error", stderrors.New("boom"), fasthttp.StatusBadGateway, "EXTERNAL_SERVICE_ERROR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _, submitter := setupAPI(t)
			id := createSession(t, api)
			submitter.On("SubmitInquiry", mock.Anything).Return(tt.err).Once()

			ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/inquiry", "")

			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			body := decodeError(t, ctx)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestAPI_InquirySuccessReturnsView(t *testing.T) {
	api, _, submitter := setupAPI(t)
	id := createSession(t, api)
	submitter.On("SubmitInquiry", mock.Anything).Return(nil).Once()

	ctx := do(t, api, fasthttp.MethodPost, "/v1/sessions/"+id+"/inquiry", "")

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, id, decodeView(t, ctx).SessionID)
}
