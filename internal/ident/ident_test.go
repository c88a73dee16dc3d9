package ident

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Format(t *testing.T) {
	now := time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	id := New("MNT", now)
	assert.Regexp(t, regexp.MustCompile(`^MNT-202503-\d{6}-[0-9A-F]{8}$`), id)

	scoped := Scoped("EVT", "AGM-2025-03", now)
	assert.Regexp(t, regexp.MustCompile(`^EVT-AGM-2025-03-202503-\d{6}-[0-9A-F]{8}$`), scoped)
}

func TestNew_UniqueUnderConcurrency(t *testing.T) {
	const n = 2000
	now := time.Now()
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- New("LEV", now)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
