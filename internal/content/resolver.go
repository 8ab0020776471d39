// Package content resolves a message's binary payload: cheap content is
// derived from the stored record, expensive media is fetched through the
// protocol adapter at most once and cached in the content store.
package content

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wavault/internal/store"
)

// Fetcher is the external collaborator that downloads media bytes.
// The wa adapter implements it; tests use fakes.
type Fetcher interface {
	FetchMedia(ctx context.Context, ref *store.MediaRef) ([]byte, error)
}

// Resolver serves message content from the cache, deriving or fetching on
// miss.
type Resolver struct {
	store   *store.Store
	fetcher Fetcher
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewResolver creates a resolver. timeout bounds one media fetch; zero
// means no bound beyond the caller's context.
func NewResolver(s *store.Store, f Fetcher, logger *zap.Logger, timeout time.Duration) *Resolver {
	return &Resolver{
		store:    s,
		fetcher:  f,
		logger:   logger,
		timeout:  timeout,
		inflight: make(map[string]*sync.Mutex),
	}
}

// keyLock serializes resolution per message so concurrent callers cannot
// trigger the external fetch twice.
func (r *Resolver) keyLock(cid, mid string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cid + "/" + mid
	l, ok := r.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		r.inflight[key] = l
	}
	return l
}

// Content returns the message's payload. Cache hit returns immediately;
// otherwise the payload is derived from the record (text, location, poll)
// or fetched once via the adapter (media) and persisted. A failed fetch
// degrades to an empty payload and caches nothing, so a later call may
// retry.
func (r *Resolver) Content(ctx context.Context, cid, mid string) ([]byte, error) {
	lock := r.keyLock(cid, mid)
	lock.Lock()
	defer lock.Unlock()

	if data, ok, err := r.store.GetContent(ctx, cid, mid); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}

	m, err := r.store.GetMessage(ctx, cid, mid)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []byte{}, nil
	}

	data, fetched, err := r.resolve(ctx, m)
	if err != nil {
		return nil, err
	}
	if data == nil {
		// Temporarily unavailable: empty payload, not an error, no cache.
		return []byte{}, nil
	}
	if err := r.store.SetContent(ctx, cid, mid, data); err != nil {
		return nil, err
	}
	if fetched {
		r.logger.Info("media content cached",
			zap.String("cid", cid), zap.String("mid", mid), zap.Int("bytes", len(data)))
	}
	return data, nil
}

// Prime derives and caches self-describing content at creation time.
// Media types are left for lazy resolution; priming never fetches.
func (r *Resolver) Prime(ctx context.Context, m *store.Message) error {
	switch m.Type {
	case store.TypeText, store.TypeLocation, store.TypePoll:
		data, err := derive(m)
		if err != nil {
			return err
		}
		return r.store.SetContent(ctx, m.ChatID, m.ID, data)
	}
	return nil
}

// resolve produces the payload for a cache miss. A nil payload with nil
// error means "temporarily unavailable".
func (r *Resolver) resolve(ctx context.Context, m *store.Message) (data []byte, fetched bool, err error) {
	switch m.Type {
	case store.TypeText, store.TypeLocation, store.TypePoll:
		data, err = derive(m)
		return data, false, err
	case store.TypeImage, store.TypeVideo, store.TypeAudio, store.TypeDocument, store.TypeSticker:
		if m.Media == nil {
			return []byte{}, false, nil
		}
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		data, err := r.fetcher.FetchMedia(ctx, m.Media)
		if err != nil {
			r.logger.Warn("media fetch failed",
				zap.String("cid", m.ChatID), zap.String("mid", m.ID), zap.Error(err))
			return nil, false, nil
		}
		return data, true, nil
	default:
		return []byte{}, false, nil
	}
}

// derive builds content for self-describing message types.
func derive(m *store.Message) ([]byte, error) {
	switch m.Type {
	case store.TypeText:
		return []byte(m.Caption), nil
	case store.TypeLocation:
		if m.Location == nil {
			return []byte{}, nil
		}
		return json.Marshal(m.Location)
	case store.TypePoll:
		if m.Poll == nil {
			return []byte{}, nil
		}
		return json.Marshal(NewTally(m.Poll))
	}
	return []byte{}, nil
}
