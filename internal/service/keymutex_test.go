package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	// 同一个 key 上并发自增：锁生效时结果不会丢更新
	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			unlock := km.Lock(membershipKey(1, 7))
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	// 持有 key A 的锁时，key B 仍然可以立即获取
	unlockA := km.Lock(membershipKey(1, 7))
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(membershipKey(1, 8))
		unlockB()
		close(done)
	}()

	// key A 的锁未释放也不应阻塞 key B (阻塞时测试会超时失败)
	<-done
}

func TestKeyedMutex_EntriesCleanedUpAfterUnlock(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.Lock(membershipKey(1, 7))
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries, "无人持有时条目应从 map 中删除")
}
