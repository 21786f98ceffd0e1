package classifytier

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/metrics"
	"tax-intake/internal/common/observability"
	"tax-intake/internal/common/validation"
	"tax-intake/internal/questionnaire"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "questionnaire.classify-tier"
)

var inputSchema = validation.MustCompile("classify-tier-input", `{
	"type": "object",
	"properties": {
		"answers": {
			"type": "object",
			"properties": {
				"householdType": {"type": ["string", "null"]},
				"employmentSituations": {"type": ["array", "null"], "items": {"type": "string"}},
				"needsBookkeeping": {"type": ["boolean", "null"]},
				"assets": {"type": ["array", "null"], "items": {"type": "string"}},
				"securitiesOver10Positions": {"type": ["boolean", "null"]},
				"propertyDetail": {
					"type": ["object", "null"],
					"properties": {
						"ownerOccupiedCount": {"type": "integer", "minimum": 0, "maximum": 5},
						"rentedCount": {"type": "integer", "minimum": 0, "maximum": 3}
					}
				},
				"foreignIncomeOrAssets": {"type": ["boolean", "null"]},
				"documentReadiness": {"type": ["string", "null"]},
				"contactInfo": {"type": ["object", "null"]}
			}
		}
	},
	"required": ["answers"]
}`)

type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
}

func NewHandler(config *Config, log logger.Logger, obs *observability.Observability) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		obs:          obs,
	}
}

// Handle classifies the answers carried by the job and completes it with the
// verdict. Failures are reported to the broker through the error handler.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.run(ctx, job.Variables)
	if err != nil {
		h.recordOutcome(ctx, start, err)
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.recordOutcome(ctx, start, err)
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.recordOutcome(ctx, start, err)
		return fmt.Errorf("complete job %d: %w", job.Key, err)
	}

	h.recordOutcome(ctx, start, nil)
	return nil
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	input, err := ParseInput([]byte(variables))
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

// ParseInput validates the job variables and decodes the answers.
func ParseInput(variables []byte) (*Input, error) {
	result := inputSchema.Validate(variables)
	if !result.Valid {
		return nil, errors.NewInvalidAnswersError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, errors.NewInvalidAnswersError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	a := input.Answers
	if a.Household != questionnaire.HouseholdUnset && !a.Household.Valid() {
		return nil, errors.NewInvalidAnswersError(fmt.Sprintf("unknown household type %q", a.Household))
	}
	if a.DocumentReadiness != questionnaire.DocumentsUnset && !a.DocumentReadiness.Valid() {
		return nil, errors.NewInvalidAnswersError(fmt.Sprintf("unknown document readiness %q", a.DocumentReadiness))
	}

	cl := questionnaire.Classify(a)

	h.logger.Info("tier classified", map[string]interface{}{
		"tier":        string(cl.Tier),
		"manualQuote": cl.ManualQuote,
		"complete":    cl.Complete,
	})

	return &Output{
		Tier:        cl.Tier,
		TierCode:    cl.Code,
		Price:       cl.Price,
		ManualQuote: cl.ManualQuote,
		Complete:    cl.Complete,
		Steps:       questionnaire.Steps(a),
	}, nil
}

func (h *Handler) recordOutcome(ctx context.Context, start time.Time, err error) {
	duration := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(duration.Seconds())

	status := "completed"
	if err != nil {
		status = "failed"
		code := "INTERNAL_ERROR"
		if stdErr, ok := errors.AsStandardError(err); ok {
			code = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}
	h.obs.RecordJobDuration(ctx, duration, status)
}
