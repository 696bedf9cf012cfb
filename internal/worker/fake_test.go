package worker

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aura-community/challenges/pkg/queue"
)

type fakeQueue struct {
	mu      sync.Mutex
	retried []*queue.Job
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ ...string) (*queue.Job, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, job)
	return nil
}

type fakeProcessor struct {
	ProcessFunc func(ctx context.Context, job *queue.Job) error
	calls       int
}

func (p *fakeProcessor) Process(ctx context.Context, job *queue.Job) error {
	p.calls++
	if p.ProcessFunc != nil {
		return p.ProcessFunc(ctx, job)
	}
	return nil
}

type uploaded struct {
	Key         string
	ContentType string
	Body        []byte
}

type fakeUploader struct {
	mu      sync.Mutex
	objects []uploaded
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects = append(u.objects, uploaded{Key: key, ContentType: contentType, Body: buf.Bytes()})
	return key, nil
}
