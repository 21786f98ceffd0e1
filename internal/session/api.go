package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/metrics"
	"tax-intake/internal/common/validation"
	"tax-intake/internal/questionnaire"
)

const basePath = "/v1/sessions"

// Counter names accepted by the adjust form.
const (
	adjustOwnerOccupied = "ownerOccupiedCount"
	adjustRented        = "rentedCount"
)

// Submitter hands finished sessions to the collaborators.
type Submitter interface {
	SubmitInquiry(ctx context.Context, c *questionnaire.Controller) error
	AcceptResult(ctx context.Context, c *questionnaire.Controller) (string, error)
}

// API serves the questionnaire over HTTP.
type API struct {
	registry *Registry
	bridge   Submitter
	logger   logger.Logger
}

func NewAPI(registry *Registry, bridge Submitter, log logger.Logger) *API {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &API{registry: registry, bridge: bridge, logger: log}
}

type answerRequest struct {
	Field  questionnaire.Field `json:"field"`
	Value  json.RawMessage     `json:"value"`
	Toggle string              `json:"toggle"`
	Adjust string              `json:"adjust"`
	Delta  int                 `json:"delta"`
}

type gotoRequest struct {
	Step string `json:"step"`
}

type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// viewResponse is the session view, plus the reason a patch was ignored.
type viewResponse struct {
	questionnaire.View
	Rejected *rejection `json:"rejected,omitempty"`
}

type orderResponse struct {
	Redirect string `json:"redirect"`
}

// Handler routes /v1/sessions requests.
func (a *API) Handler(ctx *fasthttp.RequestCtx) {
	path := strings.TrimSuffix(string(ctx.Path()), "/")
	if !strings.HasPrefix(path, basePath) {
		a.writeError(ctx, "unknown", fasthttp.StatusNotFound, errors.NewInvalidRequestError("unknown path "+path))
		return
	}

	parts := strings.Split(strings.TrimPrefix(strings.TrimPrefix(path, basePath), "/"), "/")
	method := string(ctx.Method())

	switch {
	case parts[0] == "" && method == fasthttp.MethodPost:
		a.create(ctx)
		return
	case parts[0] == "":
		a.methodNotAllowed(ctx, "sessions")
		return
	}

	id := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	if len(parts) > 2 {
		a.writeError(ctx, "unknown", fasthttp.StatusNotFound, errors.NewInvalidRequestError("unknown path "+path))
		return
	}

	if action == "" && method == fasthttp.MethodDelete {
		a.delete(ctx, id)
		return
	}

	c, ok := a.registry.Get(id)
	if !ok {
		a.writeError(ctx, routeName(action), fasthttp.StatusNotFound, errors.NewSessionNotFoundError(id))
		return
	}

	if action == "" {
		if method != fasthttp.MethodGet {
			a.methodNotAllowed(ctx, "session")
			return
		}
		a.writeView(ctx, "session", c, nil)
		return
	}

	if method != fasthttp.MethodPost {
		a.methodNotAllowed(ctx, action)
		return
	}

	switch action {
	case "answers":
		a.answer(ctx, c)
	case "next":
		c.Next()
		a.writeView(ctx, action, c, nil)
	case "back":
		c.Back()
		a.writeView(ctx, action, c, nil)
	case "restart":
		c.Restart()
		a.writeView(ctx, action, c, nil)
	case "goto":
		a.goTo(ctx, c)
	case "inquiry":
		a.inquiry(ctx, c)
	case "order":
		a.order(ctx, c)
	default:
		a.writeError(ctx, "unknown", fasthttp.StatusNotFound, errors.NewInvalidRequestError("unknown action "+action))
	}
}

func (a *API) create(ctx *fasthttp.RequestCtx) {
	c := a.registry.Create()
	a.writeJSON(ctx, "sessions", fasthttp.StatusCreated, viewResponse{View: c.View()})
}

func (a *API) delete(ctx *fasthttp.RequestCtx, id string) {
	if !a.registry.Delete(id) {
		a.writeError(ctx, "session", fasthttp.StatusNotFound, errors.NewSessionNotFoundError(id))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	metrics.HTTPRequests.WithLabelValues("session", strconv.Itoa(fasthttp.StatusNoContent)).Inc()
}

func (a *API) answer(ctx *fasthttp.RequestCtx, c *questionnaire.Controller) {
	var req answerRequest
	if !a.decode(ctx, "answers", answerSchema, &req) {
		return
	}

	var err error
	switch {
	case req.Toggle != "":
		err = toggle(c, req.Toggle)
	case req.Adjust == adjustOwnerOccupied:
		err = c.AdjustOwnerOccupied(req.Delta)
	case req.Adjust == adjustRented:
		err = c.AdjustRented(req.Delta)
	default:
		var p questionnaire.Patch
		p, err = patchFromValue(req.Field, req.Value)
		if err == nil {
			err = c.Apply(p)
		}
	}

	a.writeView(ctx, "answers", c, rejectionFor(err))
}

func (a *API) goTo(ctx *fasthttp.RequestCtx, c *questionnaire.Controller) {
	var req gotoRequest
	if !a.decode(ctx, "goto", gotoSchema, &req) {
		return
	}

	step, ok := questionnaire.ParseStep(req.Step)
	if !ok {
		a.writeError(ctx, "goto", fasthttp.StatusBadRequest, errors.NewInvalidRequestError("unknown step "+req.Step))
		return
	}
	if err := c.GoTo(step); err != nil {
		stdErr := errors.NewInvalidRequestError(err.Error())
		stdErr.Code = errors.ErrCodePrerequisiteUnmet
		a.writeError(ctx, "goto", fasthttp.StatusConflict, stdErr)
		return
	}
	a.writeView(ctx, "goto", c, nil)
}

func (a *API) inquiry(ctx *fasthttp.RequestCtx, c *questionnaire.Controller) {
	if err := a.bridge.SubmitInquiry(ctx, c); err != nil {
		a.writeSubmissionError(ctx, "inquiry", err)
		return
	}
	a.writeView(ctx, "inquiry", c, nil)
}

func (a *API) order(ctx *fasthttp.RequestCtx, c *questionnaire.Controller) {
	redirect, err := a.bridge.AcceptResult(ctx, c)
	if err != nil {
		a.writeSubmissionError(ctx, "order", err)
		return
	}
	a.writeJSON(ctx, "order", fasthttp.StatusOK, orderResponse{Redirect: redirect})
}

// decode validates the body against schema before unmarshalling it.
func (a *API) decode(ctx *fasthttp.RequestCtx, route string, schema *validation.Schema, v interface{}) bool {
	body := ctx.PostBody()
	result := schema.Validate(body)
	if !result.Valid {
		stdErr := errors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
		a.writeError(ctx, route, fasthttp.StatusBadRequest, stdErr)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		a.writeError(ctx, route, fasthttp.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return false
	}
	return true
}

func (a *API) writeView(ctx *fasthttp.RequestCtx, route string, c *questionnaire.Controller, rej *rejection) {
	a.writeJSON(ctx, route, fasthttp.StatusOK, viewResponse{View: c.View(), Rejected: rej})
}

func (a *API) writeSubmissionError(ctx *fasthttp.RequestCtx, route string, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		stdErr = errors.NewExternalServiceError(route, err)
	}
	a.writeError(ctx, route, statusFor(stdErr.Code), stdErr)
}

func (a *API) writeError(ctx *fasthttp.RequestCtx, route string, status int, stdErr *errors.StandardError) {
	if status >= fasthttp.StatusInternalServerError {
		a.logger.Error("Request failed", map[string]interface{}{
			"route":     route,
			"status":    status,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
	a.writeJSON(ctx, route, status, stdErr)
}

func (a *API) writeJSON(ctx *fasthttp.RequestCtx, route string, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = fasthttp.StatusInternalServerError
		body = []byte(fmt.Sprintf(`{"code":"INTERNAL_ERROR","message":%q}`, err.Error()))
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (a *API) methodNotAllowed(ctx *fasthttp.RequestCtx, route string) {
	a.writeError(ctx, route, fasthttp.StatusMethodNotAllowed, errors.NewInvalidRequestError("method "+string(ctx.Method())+" not allowed"))
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeSubmissionNotReady, errors.ErrCodeSubmissionInFlight, errors.ErrCodeSubmissionDiscarded, errors.ErrCodeSubmissionCompleted:
		return fasthttp.StatusConflict
	case errors.ErrCodeSessionNotFound:
		return fasthttp.StatusNotFound
	case errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidAnswers:
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusBadGateway
	}
}

func routeName(action string) string {
	if action == "" {
		return "session"
	}
	return action
}

func rejectionFor(err error) *rejection {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, questionnaire.ErrPrerequisiteUnmet):
		return &rejection{Code: string(errors.ErrCodePrerequisiteUnmet), Message: err.Error()}
	default:
		return &rejection{Code: string(errors.ErrCodeInvalidAnswers), Message: err.Error()}
	}
}

func toggle(c *questionnaire.Controller, member string) error {
	if _, err := questionnaire.ParseEmploymentSet([]questionnaire.Employment{questionnaire.Employment(member)}); err == nil {
		return c.ToggleEmployment(questionnaire.Employment(member))
	}
	if _, err := questionnaire.ParseAssetSet([]questionnaire.Asset{questionnaire.Asset(member)}); err == nil {
		return c.ToggleAsset(questionnaire.Asset(member))
	}
	return fmt.Errorf("%w: unknown option %q", questionnaire.ErrInvalidValue, member)
}

// patchFromValue decodes the JSON value of one field into a patch.
func patchFromValue(field questionnaire.Field, raw json.RawMessage) (questionnaire.Patch, error) {
	invalid := func(err error) (questionnaire.Patch, error) {
		return questionnaire.Patch{}, fmt.Errorf("%w: %s: %v", questionnaire.ErrInvalidValue, field, err)
	}

	switch field {
	case questionnaire.FieldHousehold:
		var v questionnaire.Household
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetHousehold(v), nil

	case questionnaire.FieldEmployment:
		var v questionnaire.EmploymentSet
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetEmployment(v), nil

	case questionnaire.FieldAssets:
		var v questionnaire.AssetSet
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetAssets(v), nil

	case questionnaire.FieldProperty:
		var v questionnaire.PropertyDetail
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetPropertyCounts(v.OwnerOccupied, v.Rented), nil

	case questionnaire.FieldDocumentReadiness:
		var v questionnaire.DocumentReadiness
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetDocumentReadiness(v), nil

	case questionnaire.FieldContact:
		var v questionnaire.Contact
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		return questionnaire.SetContact(v), nil

	case questionnaire.FieldNeedsBookkeeping, questionnaire.FieldSecuritiesOver10, questionnaire.FieldForeignIncome:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return invalid(err)
		}
		switch field {
		case questionnaire.FieldNeedsBookkeeping:
			return questionnaire.SetBookkeeping(v), nil
		case questionnaire.FieldSecuritiesOver10:
			return questionnaire.SetSecuritiesOver10(v), nil
		default:
			return questionnaire.SetForeignIncome(v), nil
		}
	}

	return invalid(fmt.Errorf("unknown field"))
}
