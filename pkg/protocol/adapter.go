package protocol

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockbus/pubsub-capture/pkg/capture"
	"github.com/mockbus/pubsub-capture/pkg/capture/cerr"
	"github.com/mockbus/pubsub-capture/pkg/concurrency"
	apperrors "github.com/mockbus/pubsub-capture/pkg/errors"
)

// Store is the subset of capture.InstrumentedStore the adapter needs,
// extracted so the adapter can be driven by either the instrumented store
// or a bare test double.
type Store interface {
	Add(ctx context.Context, record capture.Record) error
	GetByTopic(ctx context.Context, topic string) ([]capture.Record, error)
}

const (
	stubRegion  = "us-east-1"
	stubAccount = "123456789012"
)

// Response is what the adapter hands back to the host framework: it owns
// no knowledge of any particular HTTP library.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Adapter is the protocol adapter (C5) plus its SQS-shaped extension (C9).
// It never imports a host HTTP framework; the host extracts the body bytes
// and the X-Amz-Target header and calls Handle.
type Adapter struct {
	store Store
}

func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store}
}

// Handle parses body as an application/x-www-form-urlencoded request,
// dispatches on the resolved action, and returns a response envelope.
// It never panics on malformed input.
func (a *Adapter) Handle(ctx context.Context, amzTarget string, body []byte) Response {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return a.errorResponse(cerr.MissingAction())
	}

	action, err := ParseAction(form, amzTarget)
	if err != nil {
		return a.errorResponse(err)
	}

	switch action {
	case "Publish":
		return a.publish(ctx, form, body)
	case "CreateTopic":
		return a.createTopic(form)
	case "SendMessage":
		return a.sendMessage(ctx, form, body)
	case "SendMessageBatch":
		return a.sendMessageBatch(ctx, form, body)
	default:
		return a.errorResponse(cerr.InvalidAction(action))
	}
}

func (a *Adapter) publish(ctx context.Context, form url.Values, rawBody []byte) Response {
	topic := form.Get("TopicArn")
	if topic == "" {
		return a.errorResponse(cerr.InvalidParameter("TopicArn"))
	}
	message := form.Get("Message")
	if message == "" {
		return a.errorResponse(cerr.InvalidParameter("Message"))
	}

	dedupID := form.Get("MessageDeduplicationId")
	if dedupID != "" {
		if existing, ok := a.findByDedup(ctx, topic, dedupID); ok {
			return successResponse(EncodePublishSuccess(existing.ID, newRequestID()))
		}
	}

	attrs, err := ParseSNSAttributes(form)
	if err != nil {
		return a.errorResponse(err)
	}

	record := capture.Record{
		ID:         newMessageID(),
		Topic:      topic,
		Body:       message,
		Subject:    form.Get("Subject"),
		Structure:  form.Get("MessageStructure"),
		DedupID:    dedupID,
		GroupID:    form.Get("MessageGroupId"),
		Attributes: attrs,
		Timestamp:  time.Now(),
		RawPayload: rawBody,
	}

	if err := a.store.Add(ctx, record); err != nil {
		return a.errorResponse(cerr.Internal(err))
	}

	return successResponse(EncodePublishSuccess(record.ID, newRequestID()))
}

func (a *Adapter) createTopic(form url.Values) Response {
	name := form.Get("Name")
	if name == "" {
		return a.errorResponse(cerr.InvalidParameter("Name"))
	}
	topicArn := fmt.Sprintf("arn:aws:sns:%s:%s:%s", stubRegion, stubAccount, name)
	return successResponse(EncodeCreateTopicSuccess(topicArn, newRequestID()))
}

func (a *Adapter) sendMessage(ctx context.Context, form url.Values, rawBody []byte) Response {
	queueURL := form.Get("QueueUrl")
	if queueURL == "" {
		return a.errorResponse(cerr.InvalidParameter("QueueUrl"))
	}
	body := form.Get("MessageBody")
	if body == "" {
		return a.errorResponse(cerr.InvalidParameter("MessageBody"))
	}

	dedupID := form.Get("MessageDeduplicationId")
	if dedupID != "" {
		if existing, ok := a.findByDedup(ctx, queueURL, dedupID); ok {
			return successResponse(EncodeSendMessageSuccess(existing.ID, md5Hex(existing.Body), newRequestID()))
		}
	}

	attrs, err := ParseSQSAttributes(form)
	if err != nil {
		return a.errorResponse(err)
	}

	record := capture.Record{
		ID:         newMessageID(),
		Topic:      queueURL,
		Body:       body,
		DedupID:    dedupID,
		GroupID:    form.Get("MessageGroupId"),
		Attributes: attrs,
		Timestamp:  time.Now(),
		RawPayload: rawBody,
	}

	if err := a.store.Add(ctx, record); err != nil {
		return a.errorResponse(cerr.Internal(err))
	}

	return successResponse(EncodeSendMessageSuccess(record.ID, md5Hex(record.Body), newRequestID()))
}

func (a *Adapter) sendMessageBatch(ctx context.Context, form url.Values, rawBody []byte) Response {
	queueURL := form.Get("QueueUrl")
	if queueURL == "" {
		return a.errorResponse(cerr.InvalidParameter("QueueUrl"))
	}

	entries, err := ParseBatchEntries(form)
	if err != nil {
		return a.errorResponse(err)
	}

	// Entries are independent: each gets its own ID and lands under the
	// same queueURL topic, so they're inserted concurrently rather than
	// one at a time. store.Add serializes internally, so this only saves
	// wall time on the per-entry work outside the store's critical section
	// (id minting, hashing, tracing). The relative order of one batch's
	// entries in the store is therefore not the entry index order.
	results := make([]BatchResult, len(entries))
	var firstErr error
	var mu sync.Mutex
	concurrency.FanOut(ctx, len(entries), func(i int) {
		entry := entries[i]
		record := capture.Record{
			ID:         newMessageID(),
			Topic:      queueURL,
			Body:       entry.Body,
			Attributes: entry.Attributes,
			Timestamp:  time.Now(),
			RawPayload: rawBody,
		}
		if err := a.store.Add(ctx, record); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		results[i] = BatchResult{ID: entry.ID, MessageID: record.ID, MD5OfMessageBody: md5Hex(record.Body)}
	})
	if firstErr != nil {
		return a.errorResponse(cerr.Internal(firstErr))
	}

	return successResponse(EncodeSendMessageBatchSuccess(results, newRequestID()))
}

// findByDedup implements §4.5.1's sole dedup mechanism: a linear scan of
// the topic's existing records for a matching MessageDeduplicationId. The
// store keeps no dedicated dedup index; GetByTopic is already O(topic
// size) and dedup is not on the tightest part of the hot path.
func (a *Adapter) findByDedup(ctx context.Context, topic, dedupID string) (capture.Record, bool) {
	records, err := a.store.GetByTopic(ctx, topic)
	if err != nil {
		return capture.Record{}, false
	}
	for _, r := range records {
		if r.DedupID == dedupID {
			return r, true
		}
	}
	return capture.Record{}, false
}

func (a *Adapter) errorResponse(err error) Response {
	code := apperrors.CodeOf(err)
	message := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		message = appErr.Message
	}
	status := cerr.HTTPStatus(code)
	body := EncodeError(cerr.WireCode(code), message, newRequestID())
	return Response{Status: status, ContentType: "text/xml", Body: body}
}

func successResponse(body []byte) Response {
	return Response{Status: 200, ContentType: "text/xml", Body: body}
}

func newMessageID() string {
	return uuid.NewString()
}

func newRequestID() string {
	return uuid.NewString()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
