// Package ident issues the opaque correlation numbers handed back to callers
// (ticket, confirmation and calculation numbers).
package ident

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var seq atomic.Uint64

// New returns PREFIX-YYYYMM-NNNNNN-XXXXXXXX. The sequence number makes ids
// unique within the process; the uuid fragment keeps them unique across restarts.
func New(prefix string, now time.Time) string {
	n := seq.Add(1) % 1_000_000
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%04d%02d-%06d-%s", prefix, now.Year(), int(now.Month()), n, frag)
}

// Scoped is like New but embeds a scope key, e.g. an event id.
func Scoped(prefix, scope string, now time.Time) string {
	return New(prefix+"-"+scope, now)
}
