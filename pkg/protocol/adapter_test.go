package protocol_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbus/pubsub-capture/pkg/capture"
	"github.com/mockbus/pubsub-capture/pkg/protocol"
)

type ctxStore struct {
	*capture.Store
}

func newCtxStore(t *testing.T, capacity int) *ctxStore {
	t.Helper()
	s, err := capture.New(capacity)
	require.NoError(t, err)
	return &ctxStore{Store: s}
}

func (s *ctxStore) Add(_ context.Context, record capture.Record) error {
	return s.Store.Add(record)
}

func (s *ctxStore) GetByTopic(_ context.Context, topic string) ([]capture.Record, error) {
	return s.Store.GetByTopic(topic)
}

func TestAdapter_Publish_Success(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	body := "Action=Publish&TopicArn=arn:aws:sns:us-east-1:123456789012:t1&Message=hello"
	resp := adapter.Handle(context.Background(), "", []byte(body))

	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), "<MessageId>")

	records, err := store.Store.GetByTopic("arn:aws:sns:us-east-1:123456789012:t1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Body)
}

func TestAdapter_Publish_MissingTopicArn(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	resp := adapter.Handle(context.Background(), "", []byte("Action=Publish&Message=x"))

	assert.Equal(t, 400, resp.Status)
	assert.Contains(t, string(resp.Body), "<Code>InvalidParameter</Code>")
	assert.Contains(t, string(resp.Body), "TopicArn")
}

func TestAdapter_Publish_DedupReturnsSameMessageID(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	body := []byte("Action=Publish&TopicArn=t.fifo&Message=a&MessageDeduplicationId=d1")
	first := adapter.Handle(context.Background(), "", body)
	second := adapter.Handle(context.Background(), "", body)

	assert.Equal(t, 200, first.Status)
	assert.Equal(t, 200, second.Status)
	assert.Equal(t, extractMessageID(t, first.Body), extractMessageID(t, second.Body))

	records := store.Store.GetAll()
	assert.Len(t, records, 1)
}

func TestAdapter_CreateTopic_Success(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	resp := adapter.Handle(context.Background(), "", []byte("Action=CreateTopic&Name=orders"))

	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), ":orders</TopicArn>")
}

func TestAdapter_CapacityThreeKeepsMostRecent(t *testing.T) {
	store := newCtxStore(t, 3)
	adapter := protocol.NewAdapter(store)

	for _, body := range []string{"m1", "m2", "m3", "m4", "m5"} {
		form := url.Values{"Action": {"Publish"}, "TopicArn": {"t"}, "Message": {body}}
		resp := adapter.Handle(context.Background(), "", []byte(form.Encode()))
		require.Equal(t, 200, resp.Status)
	}

	records, err := store.Store.GetByTopic("t")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, []string{records[0].Body, records[1].Body, records[2].Body})
}

func TestAdapter_XAmzTargetFallback(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	form := url.Values{"TopicArn": {"t1"}, "Message": {"hello"}}
	resp := adapter.Handle(context.Background(), "com.example.sns.Publish", []byte(form.Encode()))
	assert.Equal(t, 200, resp.Status)

	missing := adapter.Handle(context.Background(), "", []byte(form.Encode()))
	assert.Equal(t, 400, missing.Status)
	assert.Contains(t, string(missing.Body), "<Code>MissingAction</Code>")
}

func TestAdapter_SendMessage_Success(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	form := url.Values{"Action": {"SendMessage"}, "QueueUrl": {"q1"}, "MessageBody": {"hi"}}
	resp := adapter.Handle(context.Background(), "", []byte(form.Encode()))

	assert.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Body), "<MD5OfMessageBody>")

	records, err := store.Store.GetByTopic("q1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hi", records[0].Body)
}

func TestAdapter_SendMessageBatch_Success(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	form := url.Values{
		"Action":   {"SendMessageBatch"},
		"QueueUrl": {"q1"},
		"SendMessageBatchRequestEntry.1.Id":          {"e1"},
		"SendMessageBatchRequestEntry.1.MessageBody": {"first"},
		"SendMessageBatchRequestEntry.2.Id":          {"e2"},
		"SendMessageBatchRequestEntry.2.MessageBody": {"second"},
	}
	resp := adapter.Handle(context.Background(), "", []byte(form.Encode()))

	assert.Equal(t, 200, resp.Status)
	records, err := store.Store.GetByTopic("q1")
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestAdapter_UnknownAction(t *testing.T) {
	store := newCtxStore(t, 10)
	adapter := protocol.NewAdapter(store)

	resp := adapter.Handle(context.Background(), "", []byte("Action=FrobnicateTopic"))
	assert.Equal(t, 400, resp.Status)
	assert.Contains(t, string(resp.Body), "<Code>InvalidAction</Code>")
}

func extractMessageID(t *testing.T, body []byte) string {
	t.Helper()
	s := string(body)
	start := indexAfter(s, "<MessageId>")
	end := indexAfter(s, "</MessageId>") - len("</MessageId>")
	require.Greater(t, end, start)
	return s[start:end]
}

func indexAfter(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i + len(substr)
		}
	}
	return -1
}
