package service

import (
	"fmt"
	"sync"
)

// keyedMutex 提供按 key 的互斥锁，用于把同一 (room, user) 键上的操作
// 串行化：Join 和 Kick 不能交错出现半套状态。不同键的操作互不阻塞。
// 条目带引用计数，无人持有时从 map 中删除，避免 key 无限堆积。
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// Lock 锁定给定 key，返回对应的解锁函数。
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// membershipKey 生成 (room, user) 对应的锁 key。
func membershipKey(roomID, userID uint) string {
	return fmt.Sprintf("%d:%d", roomID, userID)
}
