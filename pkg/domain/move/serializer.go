package move

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrBusy は待機時間内に入力デバイスを確保できなかったことを表します（古い入力は捨てる）
	ErrBusy   = errors.New("入力デバイスが使用中です")
	ErrClosed = errors.New("入力デバイスは停止済みです")
)

// Serializer は仮想入力デバイスを同時に1シーケンスだけが操作できるようにします
type Serializer struct {
	sem    *semaphore.Weighted
	wait   time.Duration
	closed atomic.Bool
}

func NewSerializer(wait time.Duration) *Serializer {
	return &Serializer{
		sem:  semaphore.NewWeighted(1),
		wait: wait,
	}
}

// Do はデバイスを確保して fn を実行します。wait 以内に確保できなければ ErrBusy を返します。
// fn は途中で中断されません。
func (s *Serializer) Do(ctx context.Context, fn func()) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if s.wait <= 0 {
		if !s.sem.TryAcquire(1) {
			return ErrBusy
		}
	} else {
		actx, cancel := context.WithTimeout(ctx, s.wait)
		err := s.sem.Acquire(actx, 1)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrBusy
		}
	}
	defer s.sem.Release(1)

	if s.closed.Load() {
		return ErrClosed
	}
	fn()
	return nil
}

// Close は新規の実行を拒否し、実行中のシーケンスが解放まで終わるのを待ちます
func (s *Serializer) Close(ctx context.Context) error {
	s.closed.Store(true)
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.sem.Release(1)
	return nil
}
