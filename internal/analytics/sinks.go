package analytics

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	json "github.com/goccy/go-json"

	"tax-intake/internal/common/metrics"
	"tax-intake/internal/questionnaire"
)

// PrometheusSink counts funnel events.
type PrometheusSink struct{}

func (PrometheusSink) Name() string { return "prometheus" }

func (PrometheusSink) Send(_ context.Context, e questionnaire.Event) error {
	switch e.Type {
	case questionnaire.EventStepEntered:
		metrics.QuestionnaireStepsEntered.WithLabelValues(string(e.Step)).Inc()
	case questionnaire.EventCompleted:
		metrics.QuestionnaireCompleted.WithLabelValues(string(e.Tier)).Inc()
	case questionnaire.EventManualQuoteEntered:
		metrics.QuestionnaireManualQuotes.Inc()
	}
	return nil
}

// Publisher publishes JSON messages to a topic.
type Publisher interface {
	PublishJSON(ctx context.Context, topicARN string, message []byte, attributes map[string]string) (string, error)
}

// SNSSink publishes each event to an SNS topic. The event type and step are
// message attributes so subscribers can filter.
type SNSSink struct {
	publisher Publisher
	topicARN  string
}

func NewSNSSink(publisher Publisher, topicARN string) *SNSSink {
	return &SNSSink{publisher: publisher, topicARN: topicARN}
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Send(ctx context.Context, e questionnaire.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.publisher.PublishJSON(ctx, s.topicARN, body, map[string]string{
		"eventType": string(e.Type),
		"step":      string(e.Step),
	})
	return err
}

// ElasticsearchSink indexes one document per event.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSink(client *elasticsearch.Client, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Send(ctx context.Context, e questionnaire.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index event: %s", res.Status())
	}
	return nil
}

// Multi fans an event out to every sink and reports all failures together.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Send(ctx context.Context, e questionnaire.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}
