package submissions

import (
	"context"
	"sync"

	"github.com/aura-community/challenges/pkg/queue"
)

type fakeArchiver struct {
	mu       sync.Mutex
	payloads []queue.EvidenceArchivePayload

	EnqueueFunc func(ctx context.Context, payload queue.EvidenceArchivePayload) error
}

func (f *fakeArchiver) EnqueueEvidenceArchive(ctx context.Context, payload queue.EvidenceArchivePayload) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	if f.EnqueueFunc != nil {
		return f.EnqueueFunc(ctx, payload)
	}
	return nil
}

type fakePresigner struct {
	PresignFunc func(ctx context.Context, key string) (string, error)
}

func (f *fakePresigner) GeneratePresignedDownloadURL(ctx context.Context, key string) (string, error) {
	return f.PresignFunc(ctx, key)
}
