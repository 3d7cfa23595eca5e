package sqs_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
	sqsstore "github.com/xraph/taskq/store/sqs"
)

const testURL = "https://sqs.local/000000000000/jobs"

type fakeMessage struct {
	id       string
	body     string
	attrs    map[string]types.MessageAttributeValue
	receipt  string
	receives int
}

// fakeSQS is an in-memory API with visibility semantics.
type fakeSQS struct {
	mu        sync.Mutex
	next      int
	visible   []*fakeMessage
	inflight  map[string]*fakeMessage
	receiveFn func() error
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{inflight: make(map[string]*fakeMessage)}
}

func (f *fakeSQS) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	m := &fakeMessage{
		id:    "msg-" + strconv.Itoa(f.next),
		body:  aws.ToString(in.MessageBody),
		attrs: in.MessageAttributes,
	}
	f.visible = append(f.visible, m)
	return &awssqs.SendMessageOutput{MessageId: aws.String(m.id)}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	if f.receiveFn != nil {
		if err := f.receiveFn(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.MaxNumberOfMessages != 1 {
		return nil, errors.New("expected MaxNumberOfMessages=1")
	}
	if len(f.visible) == 0 {
		return &awssqs.ReceiveMessageOutput{}, nil
	}
	m := f.visible[0]
	f.visible = f.visible[1:]
	m.receives++
	m.receipt = m.id + "-r" + strconv.Itoa(m.receives)
	f.inflight[m.receipt] = m
	return &awssqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:         aws.String(m.id),
		Body:              aws.String(m.body),
		ReceiptHandle:     aws.String(m.receipt),
		MessageAttributes: m.attrs,
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): strconv.Itoa(m.receives),
		},
	}}}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *awssqs.DeleteMessageInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := aws.ToString(in.ReceiptHandle)
	if _, ok := f.inflight[r]; !ok {
		return nil, errors.New("ReceiptHandleIsInvalid")
	}
	delete(f.inflight, r)
	return &awssqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(_ context.Context, in *awssqs.ChangeMessageVisibilityInput, _ ...func(*awssqs.Options)) (*awssqs.ChangeMessageVisibilityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := aws.ToString(in.ReceiptHandle)
	m, ok := f.inflight[r]
	if !ok {
		return nil, errors.New("ReceiptHandleIsInvalid")
	}
	if in.VisibilityTimeout == 0 {
		delete(f.inflight, r)
		f.visible = append(f.visible, m)
	}
	return &awssqs.ChangeMessageVisibilityOutput{}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, _ *awssqs.GetQueueAttributesInput, _ ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &awssqs.GetQueueAttributesOutput{Attributes: map[string]string{
		string(types.QueueAttributeNameApproximateNumberOfMessages): strconv.Itoa(len(f.visible)),
	}}, nil
}

func (f *fakeSQS) PurgeQueue(_ context.Context, _ *awssqs.PurgeQueueInput, _ ...func(*awssqs.Options)) (*awssqs.PurgeQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = nil
	f.inflight = make(map[string]*fakeMessage)
	return &awssqs.PurgeQueueOutput{}, nil
}

func TestSQS_ClaimCarriesReceiptAndCount(t *testing.T) {
	ctx := context.Background()
	s := sqsstore.New(newFakeSQS(), testURL)

	id, err := s.Insert(ctx, []byte(`{"kind":0}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	m, err := s.Claim(ctx)
	if err != nil || m == nil {
		t.Fatalf("claim = %v, %v", m, err)
	}
	if m.ID != id {
		t.Errorf("id = %q, want %q", m.ID, id)
	}
	if m.Header[job.HeaderReceiptHandle] == "" {
		t.Error("missing receipt handle")
	}
	if got := m.Header[job.HeaderReceiveCount]; got != "1" {
		t.Errorf("receive count = %q, want %q", got, "1")
	}
	if string(m.Payload) != `{"kind":0}` {
		t.Errorf("payload = %q", m.Payload)
	}

	if err := s.Requeue(ctx, m); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	m, _ = s.Claim(ctx)
	if got := m.Header[job.HeaderReceiveCount]; got != "2" {
		t.Errorf("receive count after requeue = %q, want %q", got, "2")
	}
	if err := s.Remove(ctx, m); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if m, _ := s.Claim(ctx); m != nil {
		t.Errorf("claimed %s after remove", m.ID)
	}
}

func TestSQS_EmptyClaim(t *testing.T) {
	s := sqsstore.New(newFakeSQS(), testURL)
	m, err := s.Claim(context.Background())
	if err != nil || m != nil {
		t.Fatalf("claim = %v, %v, want nil, nil", m, err)
	}
}

func TestSQS_MissingReceipt(t *testing.T) {
	ctx := context.Background()
	s := sqsstore.New(newFakeSQS(), testURL)
	m := &queue.Message{ID: "msg-1"}

	if err := s.Remove(ctx, m); !errors.Is(err, taskq.ErrMissingReceipt) {
		t.Errorf("remove: got %v, want ErrMissingReceipt", err)
	}
	if err := s.Requeue(ctx, m); !errors.Is(err, taskq.ErrMissingReceipt) {
		t.Errorf("requeue: got %v, want ErrMissingReceipt", err)
	}
}

func TestSQS_BinaryPayload(t *testing.T) {
	ctx := context.Background()
	s := sqsstore.New(newFakeSQS(), testURL)

	payload := []byte{0x83, 0xa4, 0xff, 0x00, 0xc1}
	if _, err := s.Insert(ctx, payload); err != nil {
		t.Fatalf("insert: %v", err)
	}
	m, err := s.Claim(ctx)
	if err != nil || m == nil {
		t.Fatalf("claim = %v, %v", m, err)
	}
	if string(m.Payload) != string(payload) {
		t.Errorf("payload = %x, want %x", m.Payload, payload)
	}
}

func TestSQS_SizeAndPurge(t *testing.T) {
	ctx := context.Background()
	s := sqsstore.New(newFakeSQS(), testURL)
	for i := 0; i < 3; i++ {
		_, _ = s.Insert(ctx, []byte("x"))
	}

	if n, err := s.Size(ctx); err != nil || n != 3 {
		t.Fatalf("size = %d, %v, want 3", n, err)
	}
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n, _ := s.Size(ctx); n != 0 {
		t.Errorf("size after purge = %d, want 0", n)
	}
}

func TestSQS_ReceiveError(t *testing.T) {
	fake := newFakeSQS()
	boom := errors.New("throttled")
	fake.receiveFn = func() error { return boom }
	s := sqsstore.New(fake, testURL)

	if _, err := s.Claim(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestSQS_QueueWithMsgpack(t *testing.T) {
	ctx := context.Background()
	router := job.NewRouter()
	var runs int
	router.Handle("count", func(_ context.Context, _ job.Data) (any, error) {
		runs++
		return nil, nil
	})

	q := queue.New(sqsstore.New(newFakeSQS(), testURL),
		queue.WithCodec(codec.Msgpack{}),
		queue.WithRouter(router),
	)
	if _, err := q.Post(ctx, job.New("count", job.Data{"n": 1})); err != nil {
		t.Fatalf("post: %v", err)
	}

	ok, err := q.Work(ctx)
	if err != nil || !ok {
		t.Fatalf("work = %v, %v", ok, err)
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if n, _ := q.Size(ctx); n != 0 {
		t.Errorf("size = %d, want 0", n)
	}
}
