package sqs

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
)

// API is the subset of the SQS client the store calls. *sqs.Client
// satisfies it.
type API interface {
	SendMessage(ctx context.Context, in *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *awssqs.ChangeMessageVisibilityInput, optFns ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, in *awssqs.GetQueueAttributesInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
	PurgeQueue(ctx context.Context, in *awssqs.PurgeQueueInput, optFns ...func(*awssqs.Options)) (*awssqs.PurgeQueueOutput, error)
}

var (
	_ API           = (*awssqs.Client)(nil)
	_ queue.Backend = (*Store)(nil)
)

// encodingAttr flags a base64 encoded body.
const (
	encodingAttr   = "taskq-encoding"
	encodingBase64 = "base64"
)

// Store is an SQS queue backend bound to one queue URL.
type Store struct {
	client   API
	url      string
	waitTime int32
	logger   *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithWaitTime enables long polling on Claim, in seconds (0 to 20).
func WithWaitTime(seconds int32) Option {
	return func(s *Store) { s.waitTime = seconds }
}

// New creates a store for the queue at url.
func New(client API, url string, opts ...Option) *Store {
	s := &Store{
		client: client,
		url:    url,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the queue URL.
func (s *Store) URL() string { return s.url }

// Insert sends payload as a new message and returns its MessageId.
func (s *Store) Insert(ctx context.Context, payload []byte) (string, error) {
	in := &awssqs.SendMessageInput{QueueUrl: aws.String(s.url)}
	if utf8.Valid(payload) {
		in.MessageBody = aws.String(string(payload))
	} else {
		in.MessageBody = aws.String(base64.StdEncoding.EncodeToString(payload))
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			encodingAttr: {DataType: aws.String("String"), StringValue: aws.String(encodingBase64)},
		}
	}

	out, err := s.client.SendMessage(ctx, in)
	if err != nil {
		return "", fmt.Errorf("taskq/sqs: send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Claim receives at most one message. The receipt handle and approximate
// receive count are carried in the header.
func (s *Store) Claim(ctx context.Context) (*queue.Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(s.url),
		MaxNumberOfMessages:         1,
		WaitTimeSeconds:             s.waitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		MessageAttributeNames:       []string{encodingAttr},
	})
	if err != nil {
		return nil, fmt.Errorf("taskq/sqs: receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	body := []byte(aws.ToString(msg.Body))
	if v, ok := msg.MessageAttributes[encodingAttr]; ok && aws.ToString(v.StringValue) == encodingBase64 {
		raw, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			s.logger.Warn("sqs: undecodable base64 body",
				slog.String("job_id", aws.ToString(msg.MessageId)),
				slog.String("error", err.Error()),
			)
		} else {
			body = raw
		}
	}

	m := &queue.Message{
		ID:      aws.ToString(msg.MessageId),
		Payload: body,
		Header:  job.Header{job.HeaderReceiptHandle: aws.ToString(msg.ReceiptHandle)},
	}
	if n, ok := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		m.SetHeader(job.HeaderReceiveCount, n)
	}
	return m, nil
}

// Remove deletes the message by receipt handle.
func (s *Store) Remove(ctx context.Context, m *queue.Message) error {
	receipt, err := receiptOf(m)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("taskq/sqs: delete %s: %w", m.ID, err)
	}
	return nil
}

// Requeue makes the message visible again.
func (s *Store) Requeue(ctx context.Context, m *queue.Message) error {
	receipt, err := receiptOf(m)
	if err != nil {
		return err
	}
	_, err = s.client.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(s.url),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("taskq/sqs: change visibility %s: %w", m.ID, err)
	}
	return nil
}

// Size returns ApproximateNumberOfMessages.
func (s *Store) Size(ctx context.Context) (int64, error) {
	name := types.QueueAttributeNameApproximateNumberOfMessages
	out, err := s.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(s.url),
		AttributeNames: []types.QueueAttributeName{name},
	})
	if err != nil {
		return 0, fmt.Errorf("taskq/sqs: size: %w", err)
	}
	raw, ok := out.Attributes[string(name)]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("taskq/sqs: size %q: %w", raw, err)
	}
	return n, nil
}

// Purge deletes every message in the queue. SQS allows one purge per
// queue every 60 seconds.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.client.PurgeQueue(ctx, &awssqs.PurgeQueueInput{QueueUrl: aws.String(s.url)}); err != nil {
		return fmt.Errorf("taskq/sqs: purge: %w", err)
	}
	return nil
}

func receiptOf(m *queue.Message) (string, error) {
	r := m.Header[job.HeaderReceiptHandle]
	if r == "" {
		return "", fmt.Errorf("%w: message %s", taskq.ErrMissingReceipt, m.ID)
	}
	return r, nil
}
