package marketplace

import (
	"context"
	"sync/atomic"
)

// frame is the state of one in-flight top-level call. It travels in the context handed to
// external collaborators so a re-entering call joins it instead of waiting on the service
// lock. A finished frame is never joined again.
type frame struct {
	busy bool
	done atomic.Bool
}

type frameKey struct {
	svc *Service
}

func (s *Service) frameFrom(ctx context.Context) (*frame, bool) {
	f, ok := ctx.Value(frameKey{svc: s}).(*frame)
	if !ok || f.done.Load() {
		return nil, false
	}
	return f, true
}
