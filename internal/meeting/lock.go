package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"meetwatch/internal/logging"
	"meetwatch/internal/services"
)

const (
	defaultLockWait = 15 * time.Second
	lockRetryDelay  = 100 * time.Millisecond
)

// acquire takes the host lock shared by join and leave. The returned release
// function must be called once the command has finished writing state.
func (s *Service) acquire(ctx context.Context, operation string) (func(), error) {
	lock := flock.New(s.cfg.LockPath())
	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	ok, err := lock.TryLockContext(waitCtx, lockRetryDelay)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil || !ok {
		return nil, services.Wrap(
			services.ErrPrecondition,
			"meeting",
			operation,
			fmt.Sprintf("another meetwatch command holds %s", s.cfg.LockPath()),
			err,
		)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release session lock", logging.String("lock", s.cfg.LockPath()), logging.Error(err))
		}
	}, nil
}
