package queue

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/job"
)

// pack converts a job into the payload handed to the backend.
func (q *Queue) pack(j *job.Job) ([]byte, error) {
	env := &codec.Envelope{Kind: j.Kind, Data: j.Data}

	switch j.Kind {
	case job.KindRegular:
		if j.Route == "" {
			return nil, fmt.Errorf("%w: regular job without route", taskq.ErrInvalidJob)
		}
		env.Route = j.Route
	case job.KindCallable:
		if j.Task == nil {
			return nil, fmt.Errorf("%w: callable job without task", taskq.ErrInvalidJob)
		}
		desc, err := q.tasks.EncodeTask(j.Task)
		if err != nil {
			return nil, err
		}
		env.Task = desc
	default:
		return nil, fmt.Errorf("%w: %s", taskq.ErrInvalidJob, j.Kind)
	}

	payload, err := q.codec.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("taskq: encode %s: %w", j.Label(), err)
	}
	return payload, nil
}

// unpack rebuilds a job from a claimed message. A callable whose task
// cannot be decoded is returned with a nil Task and its descriptor kept in
// the signature header; running it fails with taskq.ErrTaskNotExecutable.
func (q *Queue) unpack(m *Message) (*job.Job, error) {
	env, err := q.codec.Decode(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", m.ID, err)
	}

	j := &job.Job{
		ID:   m.ID,
		Kind: env.Kind,
		Data: env.Data,
		Raw:  m.Payload,
	}
	for k, v := range m.Header {
		j.SetHeader(k, v)
	}
	j.SetHeader(job.HeaderSerialized, base64.StdEncoding.EncodeToString(m.Payload))

	switch env.Kind {
	case job.KindRegular:
		if env.Route == "" {
			return nil, fmt.Errorf("job %s: %w: no route detected", m.ID, taskq.ErrMalformedPayload)
		}
		j.Route = env.Route
	case job.KindCallable:
		j.SetHeader(job.HeaderSignature, base64.StdEncoding.EncodeToString(env.Task))
		task, err := q.tasks.DecodeTask(env.Task)
		if err != nil {
			q.logger.Warn("callable task cannot be decoded",
				slog.String("job_id", m.ID),
				slog.String("job", j.Label()),
				slog.String("error", err.Error()),
			)
			break
		}
		j.Task = task
	default:
		return nil, fmt.Errorf("job %s: %w: unknown kind %d", m.ID, taskq.ErrMalformedPayload, env.Kind)
	}
	return j, nil
}
