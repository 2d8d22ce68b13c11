// Package protocol implements the AWS SNS/SQS-shaped wire codec and
// protocol adapter: parsing form-encoded publish/create-topic/send-message
// requests and emitting the XML envelopes the client SDK expects.
package protocol

import (
	"encoding/base64"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"github.com/mockbus/pubsub-capture/pkg/capture"
	"github.com/mockbus/pubsub-capture/pkg/capture/cerr"
)

const (
	snsNamespace = "http://sns.amazonaws.com/doc/2010-03-31/"
	sqsNamespace = "http://queue.amazonaws.com/doc/2012-11-05/"

	snsAttributePrefix = "MessageAttributes.entry."
	sqsAttributePrefix = "MessageAttribute."
)

// ParseAction determines the requested action from the form body's Action
// field, falling back to the last dot-separated segment of the
// X-Amz-Target header. Returns cerr.MissingAction if neither is present.
func ParseAction(form url.Values, amzTarget string) (string, error) {
	if action := form.Get("Action"); action != "" {
		return action, nil
	}
	if amzTarget != "" {
		if idx := strings.LastIndex(amzTarget, "."); idx >= 0 && idx+1 < len(amzTarget) {
			return amzTarget[idx+1:], nil
		}
		return amzTarget, nil
	}
	return "", cerr.MissingAction()
}

// ParseSNSAttributes reads the SNS-shaped indexed attribute tuples
// (MessageAttributes.entry.<n>.*) from a parsed form body.
func ParseSNSAttributes(form url.Values) (map[string]capture.AttributeValue, error) {
	return parseIndexedAttributes(form, snsAttributePrefix)
}

// ParseSQSAttributes reads the SQS-shaped indexed attribute tuples
// (MessageAttribute.<n>.*) from a parsed form body.
func ParseSQSAttributes(form url.Values) (map[string]capture.AttributeValue, error) {
	return parseIndexedAttributes(form, sqsAttributePrefix)
}

// parseIndexedAttributes walks n=1,2,... under prefix until it finds an
// index with no Name field, per §4.4: iteration begins at n=1 and stops at
// the first n with no Name.
func parseIndexedAttributes(form url.Values, prefix string) (map[string]capture.AttributeValue, error) {
	attrs := make(map[string]capture.AttributeValue)
	for n := 1; ; n++ {
		base := prefix + strconv.Itoa(n) + "."
		name := form.Get(base + "Name")
		if name == "" {
			break
		}
		av := capture.AttributeValue{
			DataType: form.Get(base + "Value.DataType"),
		}
		if sv := form.Get(base + "Value.StringValue"); sv != "" {
			av.StringValue = &sv
		}
		if bv := form.Get(base + "Value.BinaryValue"); bv != "" {
			decoded, err := base64.StdEncoding.DecodeString(bv)
			if err != nil {
				return nil, cerr.InvalidParameter(base + "Value.BinaryValue")
			}
			av.BinaryValue = decoded
		}
		attrs[name] = av
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

// BatchEntry is one SendMessageBatchRequestEntry.<n> tuple.
type BatchEntry struct {
	ID         string
	Body       string
	Attributes map[string]capture.AttributeValue
}

// ParseBatchEntries reads SendMessageBatchRequestEntry.<n>.{Id,MessageBody}
// tuples, stopping at the first n with no Id.
func ParseBatchEntries(form url.Values) ([]BatchEntry, error) {
	const prefix = "SendMessageBatchRequestEntry."
	var entries []BatchEntry
	for n := 1; ; n++ {
		base := prefix + strconv.Itoa(n) + "."
		id := form.Get(base + "Id")
		if id == "" {
			break
		}
		body := form.Get(base + "MessageBody")
		if body == "" {
			return nil, cerr.InvalidParameter(base + "MessageBody")
		}
		attrs, err := parseIndexedAttributes(form, base+"MessageAttribute.")
		if err != nil {
			return nil, err
		}
		entries = append(entries, BatchEntry{ID: id, Body: body, Attributes: attrs})
	}
	if len(entries) == 0 {
		return nil, cerr.InvalidParameter(prefix + "1.Id")
	}
	return entries, nil
}

// --- XML envelopes ---

type errorEnvelope struct {
	XMLName   xml.Name `xml:"ErrorResponse"`
	Error     errorBody
	RequestID string `xml:"RequestId"`
}

type errorBody struct {
	Type    string `xml:"Type"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type responseMetadata struct {
	RequestID string `xml:"RequestId"`
}

type publishResponse struct {
	XMLName          xml.Name
	Result           publishResult `xml:"PublishResult"`
	ResponseMetadata responseMetadata
}

type publishResult struct {
	MessageID string `xml:"MessageId"`
}

type createTopicResponse struct {
	XMLName          xml.Name
	Result           createTopicResult `xml:"CreateTopicResult"`
	ResponseMetadata responseMetadata
}

type createTopicResult struct {
	TopicArn string `xml:"TopicArn"`
}

type sendMessageResponse struct {
	XMLName          xml.Name
	Result           sendMessageResult `xml:"SendMessageResult"`
	ResponseMetadata responseMetadata
}

type sendMessageResult struct {
	MessageID        string `xml:"MessageId"`
	MD5OfMessageBody string `xml:"MD5OfMessageBody"`
}

type sendMessageBatchResponse struct {
	XMLName          xml.Name
	Result           sendMessageBatchResult `xml:"SendMessageBatchResult"`
	ResponseMetadata responseMetadata
}

type sendMessageBatchResult struct {
	Entries []batchResultEntry `xml:"SendMessageBatchResultEntry"`
}

type batchResultEntry struct {
	ID               string `xml:"Id"`
	MessageID        string `xml:"MessageId"`
	MD5OfMessageBody string `xml:"MD5OfMessageBody"`
}

// EncodeError renders the generic AWS-style error envelope.
func EncodeError(code, message, requestID string) []byte {
	env := errorEnvelope{
		Error:     errorBody{Type: "Sender", Code: code, Message: message},
		RequestID: requestID,
	}
	return mustMarshal(env)
}

// EncodePublishSuccess renders the Publish success envelope, SNS namespace.
func EncodePublishSuccess(messageID, requestID string) []byte {
	env := publishResponse{
		XMLName:          xml.Name{Space: snsNamespace, Local: "PublishResponse"},
		Result:           publishResult{MessageID: messageID},
		ResponseMetadata: responseMetadata{RequestID: requestID},
	}
	return mustMarshal(env)
}

// EncodeCreateTopicSuccess renders the CreateTopic success envelope, SNS
// namespace.
func EncodeCreateTopicSuccess(topicArn, requestID string) []byte {
	env := createTopicResponse{
		XMLName:          xml.Name{Space: snsNamespace, Local: "CreateTopicResponse"},
		Result:           createTopicResult{TopicArn: topicArn},
		ResponseMetadata: responseMetadata{RequestID: requestID},
	}
	return mustMarshal(env)
}

// EncodeSendMessageSuccess renders the SendMessage success envelope, SQS
// namespace.
func EncodeSendMessageSuccess(messageID, md5 string, requestID string) []byte {
	env := sendMessageResponse{
		XMLName:          xml.Name{Space: sqsNamespace, Local: "SendMessageResponse"},
		Result:           sendMessageResult{MessageID: messageID, MD5OfMessageBody: md5},
		ResponseMetadata: responseMetadata{RequestID: requestID},
	}
	return mustMarshal(env)
}

// BatchResult is one successfully-inserted entry of a SendMessageBatch call.
type BatchResult struct {
	ID               string
	MessageID        string
	MD5OfMessageBody string
}

// EncodeSendMessageBatchSuccess renders the SendMessageBatch success
// envelope, SQS namespace.
func EncodeSendMessageBatchSuccess(results []BatchResult, requestID string) []byte {
	entries := make([]batchResultEntry, len(results))
	for i, r := range results {
		entries[i] = batchResultEntry{ID: r.ID, MessageID: r.MessageID, MD5OfMessageBody: r.MD5OfMessageBody}
	}
	env := sendMessageBatchResponse{
		XMLName:          xml.Name{Space: sqsNamespace, Local: "SendMessageBatchResponse"},
		Result:           sendMessageBatchResult{Entries: entries},
		ResponseMetadata: responseMetadata{RequestID: requestID},
	}
	return mustMarshal(env)
}

func mustMarshal(v interface{}) []byte {
	out, err := xml.Marshal(v)
	if err != nil {
		// Every envelope type above is a fixed, hand-built struct;
		// a marshal failure here means a programming bug, not bad input.
		panic(err)
	}
	return append([]byte(xml.Header), out...)
}
