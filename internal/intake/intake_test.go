package intake

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/zoho"
	"tax-intake/internal/questionnaire"
)

// ==========================
// Mock Implementations
// ==========================

type MockLeadClient struct {
	mock.Mock
}

func (m *MockLeadClient) SearchLeads(ctx context.Context, email string) ([]zoho.Lead, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]zoho.Lead), args.Error(1)
}

func (m *MockLeadClient) CreateLead(ctx context.Context, lead *zoho.Lead) (string, error) {
	args := m.Called(ctx, lead)
	return args.String(0), args.Error(1)
}

type MockProcessStarter struct {
	mock.Mock
}

func (m *MockProcessStarter) StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	args := m.Called(ctx, processID, variables)
	return args.Get(0).(int64), args.Error(1)
}

type MockIntake struct {
	mock.Mock
}

func (m *MockIntake) SubmitManualQuoteInquiry(ctx context.Context, inq bridge.Inquiry) error {
	return m.Called(ctx, inq).Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendText(ctx context.Context, from, to, subject, body string) (string, error) {
	args := m.Called(ctx, from, to, subject, body)
	return args.String(0), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func testInquiry() bridge.Inquiry {
	return bridge.Inquiry{
		SessionID:  "sess-1",
		FirstName:  "Lea",
		LastName:   "Meier",
		Phone:      "044 123 45 67",
		Email:      "lea@meier.ch",
		Employment: questionnaire.EmploymentCompany,
	}
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// ==========================
// Zoho Intake Tests
// ==========================

func TestZohoIntake_CreatesLead(t *testing.T) {
	crm := new(MockLeadClient)
	crm.On("SearchLeads", mock.Anything, "lea@meier.ch").Return(nil, nil)
	crm.On("CreateLead", mock.Anything, mock.MatchedBy(func(l *zoho.Lead) bool {
		return l.Email == "lea@meier.ch" && l.FirstName == "Lea" && l.LastName == "Meier" &&
			l.Source == leadSource && l.Description == Summary(testInquiry())
	})).Return("lead-1", nil)

	err := NewZohoIntake(crm, logger.NewTestLogger(t)).SubmitManualQuoteInquiry(context.Background(), testInquiry())

	require.NoError(t, err)
	crm.AssertExpectations(t)
}

func TestZohoIntake_ExistingLeadCountsAsSuccess(t *testing.T) {
	crm := new(MockLeadClient)
	crm.On("SearchLeads", mock.Anything, "lea@meier.ch").Return([]zoho.Lead{{ID: "lead-7", Email: "LEA@meier.ch"}}, nil)

	err := NewZohoIntake(crm, logger.NewTestLogger(t)).SubmitManualQuoteInquiry(context.Background(), testInquiry())

	require.NoError(t, err)
	crm.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestZohoIntake_Errors(t *testing.T) {
	tests := []struct {
		name      string
		createErr error
		retryable bool
	}{
		{"network failure", stderrors.New("dial tcp: connection refused"), true},
		{"server error", &zoho.StatusError{Operation: "create lead", StatusCode: http.StatusServiceUnavailable}, true},
		{"rejected payload", &zoho.StatusError{Operation: "create lead", StatusCode: http.StatusBadRequest}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := new(MockLeadClient)
			crm.On("SearchLeads", mock.Anything, mock.Anything).Return(nil, nil)
			crm.On("CreateLead", mock.Anything, mock.Anything).Return("", tt.createErr)

			err := NewZohoIntake(crm, logger.NewTestLogger(t)).SubmitManualQuoteInquiry(context.Background(), testInquiry())

			require.Error(t, err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			assert.ErrorIs(t, err, tt.createErr)
		})
	}
}

// ==========================
// Camunda Intake Tests
// ==========================

func TestCamundaIntake_StartsProcess(t *testing.T) {
	starter := new(MockProcessStarter)
	starter.On("StartProcess", mock.Anything, "manual-quote-inquiry", mock.MatchedBy(func(vars map[string]interface{}) bool {
		return vars["email"] == "lea@meier.ch" &&
			vars["effectiveEmployment"] == "company" &&
			vars["sessionId"] == "sess-1"
	})).Return(int64(2251799813685249), nil)

	err := NewCamundaIntake(starter, "manual-quote-inquiry", logger.NewTestLogger(t)).
		SubmitManualQuoteInquiry(context.Background(), testInquiry())

	require.NoError(t, err)
	starter.AssertExpectations(t)
}

func TestCamundaIntake_PropagatesError(t *testing.T) {
	starter := new(MockProcessStarter)
	starter.On("StartProcess", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.NewTimeoutError("zeebe", stderrors.New("deadline exceeded")))

	err := NewCamundaIntake(starter, "p", logger.NewTestLogger(t)).SubmitManualQuoteInquiry(context.Background(), testInquiry())

	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

// ==========================
// De-duplication Tests
// ==========================

func TestDeduplicating_SecondSubmitIsAcknowledged(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil).Once()

	d := NewDeduplicating(next, rdb, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, d.SubmitManualQuoteInquiry(ctx, testInquiry()))

	again := testInquiry()
	again.Email = "  LEA@Meier.ch "
	again.SessionID = "other-session"
	again.Phone = "0441234567"
	require.NoError(t, d.SubmitManualQuoteInquiry(ctx, again))

	next.AssertNumberOfCalls(t, "SubmitManualQuoteInquiry", 1)
	val, err := mr.Get(dedupeKeyPrefix + Fingerprint(testInquiry()))
	require.NoError(t, err)
	assert.Equal(t, claimDone, val)
	assert.Equal(t, time.Hour, mr.TTL(dedupeKeyPrefix+Fingerprint(testInquiry())))
}

func TestDeduplicating_FailureReleasesClaim(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(stderrors.New("crm down")).Once()
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil).Once()

	d := NewDeduplicating(next, rdb, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	require.Error(t, d.SubmitManualQuoteInquiry(ctx, testInquiry()))
	assert.False(t, mr.Exists(dedupeKeyPrefix+Fingerprint(testInquiry())))

	require.NoError(t, d.SubmitManualQuoteInquiry(ctx, testInquiry()))
	next.AssertNumberOfCalls(t, "SubmitManualQuoteInquiry", 2)
}

func TestDeduplicating_PendingClaimIsInFlight(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	require.NoError(t, mr.Set(dedupeKeyPrefix+Fingerprint(testInquiry()), claimPending))
	next := new(MockIntake)

	err := NewDeduplicating(next, rdb, time.Hour, logger.NewTestLogger(t)).
		SubmitManualQuoteInquiry(context.Background(), testInquiry())

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSubmissionInFlight, stdErr.Code)
	next.AssertNotCalled(t, "SubmitManualQuoteInquiry", mock.Anything, mock.Anything)
}

func TestDeduplicating_RedisDownFallsThrough(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	key := dedupeKeyPrefix + Fingerprint(testInquiry())
	redisMock.ExpectSetNX(key, claimPending, time.Hour).SetErr(stderrors.New("connection refused"))

	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil).Once()

	err := NewDeduplicating(next, rdb, time.Hour, logger.NewTestLogger(t)).
		SubmitManualQuoteInquiry(context.Background(), testInquiry())

	require.NoError(t, err)
	next.AssertExpectations(t)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestDeduplicating_RedisDownLogsCacheUnavailable(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	redisMock.ExpectSetNX(dedupeKeyPrefix+Fingerprint(testInquiry()), claimPending, time.Hour).
		SetErr(stderrors.New("connection refused"))

	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil).Once()

	core, logs := observer.New(zap.WarnLevel)
	err := NewDeduplicating(next, rdb, time.Hour, logger.NewZapAdapter(zap.New(core))).
		SubmitManualQuoteInquiry(context.Background(), testInquiry())
	require.NoError(t, err)

	entries := logs.FilterMessage("Inquiry de-duplication unavailable").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(errors.ErrCodeCacheUnavailable), fields["errorCode"])
	assert.Equal(t, "connection refused", fields["error"])
	assert.Equal(t, true, fields["retryable"])
}

func TestFingerprint(t *testing.T) {
	base := testInquiry()

	other := base
	other.Employment = questionnaire.EmploymentSelfEmployed
	assert.NotEqual(t, Fingerprint(base), Fingerprint(other))

	formatted := base
	formatted.Phone = "044-123-45-67"
	formatted.FirstName = " lea "
	assert.Equal(t, Fingerprint(base), Fingerprint(formatted))

	arabicIndic := base
	arabicIndic.Phone = "٠٤٤١٢٣٤٥٦٧"
	noPhone := base
	noPhone.Phone = ""
	assert.Equal(t, Fingerprint(noPhone), Fingerprint(arabicIndic), "non-ASCII digits are dropped")
}

// ==========================
// Notification Tests
// ==========================

func TestNotifying_EmailsOfficeAfterDelivery(t *testing.T) {
	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil)
	email := new(MockEmailSender)
	email.On("SendText", mock.Anything, "noreply@tax.ch", "office@tax.ch", "Manual quote inquiry: Lea Meier", Summary(testInquiry())).
		Return("msg-1", nil)

	n := NewNotifying(next, email, "noreply@tax.ch", "office@tax.ch", logger.NewTestLogger(t))

	require.NoError(t, n.SubmitManualQuoteInquiry(context.Background(), testInquiry()))
	email.AssertExpectations(t)
}

func TestNotifying_EmailFailureDoesNotFailInquiry(t *testing.T) {
	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(nil)
	email := new(MockEmailSender)
	email.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", stderrors.New("ses throttled"))

	n := NewNotifying(next, email, "a@b.ch", "c@d.ch", logger.NewTestLogger(t))

	assert.NoError(t, n.SubmitManualQuoteInquiry(context.Background(), testInquiry()))
}

func TestNotifying_NoEmailWhenDeliveryFails(t *testing.T) {
	next := new(MockIntake)
	next.On("SubmitManualQuoteInquiry", mock.Anything, mock.Anything).Return(stderrors.New("down"))
	email := new(MockEmailSender)

	n := NewNotifying(next, email, "a@b.ch", "c@d.ch", logger.NewTestLogger(t))

	assert.Error(t, n.SubmitManualQuoteInquiry(context.Background(), testInquiry()))
	email.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
