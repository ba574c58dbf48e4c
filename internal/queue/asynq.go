package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RedisOptions identifies the Redis instance backing the queue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func (o RedisOptions) asynq() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// AsynqClient implements Client using github.com/hibiken/asynq.
type AsynqClient struct {
	client *asynq.Client
}

var _ Client = (*AsynqClient)(nil)

func NewAsynqClient(opts RedisOptions) (*AsynqClient, error) {
	if opts.Addr == "" {
		return nil, errors.New("asynq: redis addr is required")
	}
	return &AsynqClient{client: asynq.NewClient(opts.asynq())}, nil
}

func (a *AsynqClient) Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(opts)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

func asynqOptions(opts []EnqueueOption) []asynq.Option {
	var out []asynq.Option
	for _, op := range opts {
		if op.Queue != "" {
			out = append(out, asynq.Queue(op.Queue))
		}
		if op.ProcessIn > 0 {
			out = append(out, asynq.ProcessIn(op.ProcessIn))
		}
		if op.MaxRetry > 0 {
			out = append(out, asynq.MaxRetry(op.MaxRetry))
		}
		if op.Timeout > 0 {
			out = append(out, asynq.Timeout(op.Timeout))
		}
	}
	return out
}

// AsynqServer implements Server using github.com/hibiken/asynq.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ Server = (*AsynqServer)(nil)

func NewAsynqServer(opts RedisOptions, concurrency int, logger *zap.Logger) (*AsynqServer, error) {
	if opts.Addr == "" {
		return nil, errors.New("asynq: redis addr is required")
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opts.asynq(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueNotifications: 3, "default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Warn("task failed",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Error(err),
			)
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		err := h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
		if errors.Is(err, ErrMalformedPayload) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	})
}

// Run starts the server and blocks until the context is canceled, then shuts down.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
