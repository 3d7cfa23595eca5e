package job

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/taskq"
)

// Task is the executable body of a callable job. Exported fields are the
// task's state; they travel with the job through the backend.
type Task interface {
	Run(ctx context.Context, data Data) (any, error)
}

// TaskCodec turns tasks into opaque descriptor bytes and back.
type TaskCodec interface {
	EncodeTask(t Task) ([]byte, error)
	DecodeTask(descriptor []byte) (Task, error)
}

type taskDescriptor struct {
	Name  string             `msgpack:"name"`
	State msgpack.RawMessage `msgpack:"state"`
}

type taskDecoder func(state []byte) (Task, error)

// TaskRegistry is the default TaskCodec. Task types are registered under a
// stable name; the descriptor is the msgpack encoding of {name, state}.
// It is safe for concurrent use.
type TaskRegistry struct {
	mu     sync.RWMutex
	byName map[string]taskDecoder
	byType map[reflect.Type]string
}

var _ TaskCodec = (*TaskRegistry)(nil)

// NewTaskRegistry creates an empty task registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		byName: make(map[string]taskDecoder),
		byType: make(map[reflect.Type]string),
	}
}

// RegisterTask registers task type T under name. T may be a struct or a
// pointer to a struct implementing Task.
func RegisterTask[T Task](r *TaskRegistry, name string) {
	decode := func(state []byte) (Task, error) {
		var t T
		if err := msgpack.Unmarshal(state, &t); err != nil {
			return nil, fmt.Errorf("decode task %q: %w", name, err)
		}
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = decode
	r.byType[reflect.TypeFor[T]()] = name
}

// EncodeTask returns the descriptor for t.
func (r *TaskRegistry) EncodeTask(t Task) ([]byte, error) {
	r.mu.RLock()
	name, ok := r.byType[reflect.TypeOf(t)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %T", taskq.ErrTaskNotRegistered, t)
	}

	state, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode task %q: %w", name, err)
	}
	return msgpack.Marshal(&taskDescriptor{Name: name, State: state})
}

// DecodeTask rebuilds a task from its descriptor.
func (r *TaskRegistry) DecodeTask(descriptor []byte) (Task, error) {
	var d taskDescriptor
	if err := msgpack.Unmarshal(descriptor, &d); err != nil {
		return nil, fmt.Errorf("%w: task descriptor: %v", taskq.ErrTaskNotExecutable, err)
	}

	r.mu.RLock()
	decode, ok := r.byName[d.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", taskq.ErrTaskNotRegistered, d.Name)
	}
	return decode(d.State)
}

// Names returns the registered task names in sorted order.
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
