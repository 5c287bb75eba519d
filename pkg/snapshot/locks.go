package snapshot

import "sync"

// folderLocks is a keyed mutex. Entries are reference counted and removed
// when the last holder unlocks, so the map only holds folders in use.
type folderLocks struct {
	mu    sync.Mutex
	locks map[string]*folderLock
}

type folderLock struct {
	mu   sync.Mutex
	refs int
}

func newFolderLocks() *folderLocks {
	return &folderLocks{locks: make(map[string]*folderLock)}
}

// lock acquires the folder and returns its unlock function.
func (l *folderLocks) lock(folder string) func() {
	l.mu.Lock()
	fl, ok := l.locks[folder]
	if !ok {
		fl = &folderLock{}
		l.locks[folder] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.mu.Lock()

	return func() {
		fl.mu.Unlock()

		l.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(l.locks, folder)
		}
		l.mu.Unlock()
	}
}
