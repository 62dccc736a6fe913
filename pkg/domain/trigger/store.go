package trigger

import "sync/atomic"

// Store は現在の Settings スナップショットを保持します。
// 書き込みはリフレッシャー1つ、読み出しは各ワーカーから同時に行われます。
type Store struct {
	current atomic.Pointer[Settings]
}

func NewStore(initial *Settings) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Load は未ロードなら nil を返します
func (s *Store) Load() *Settings {
	return s.current.Load()
}

// Swap は設定を丸ごと差し替え、直前の設定を返します
func (s *Store) Swap(next *Settings) *Settings {
	return s.current.Swap(next)
}
