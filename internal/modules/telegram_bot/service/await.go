package service

import "sync"

// awaitStore remembers which config key a chat was asked to type in.
type awaitStore struct {
	mu sync.Mutex
	m  map[int64]string // chatID -> ключ конфига
}

func newAwaitStore() *awaitStore {
	return &awaitStore{m: make(map[int64]string)}
}

func (a *awaitStore) set(chatID int64, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[chatID] = key
}

func (a *awaitStore) pop(chatID int64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, ok := a.m[chatID]
	delete(a.m, chatID)
	return key, ok
}
