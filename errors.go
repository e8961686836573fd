package malloc

import (
	"fmt"
	"log"
	"os"
)

// ErrOutOfMemory is the logical error whose message is formatted into the
// panic message raised when the chunk source cannot satisfy a request
// (the panic value is a string, not this error). Arenas have no null-return
// contract for allocation failure, so exhaustion is fatal rather than
// returned.
var ErrOutOfMemory = fmt.Errorf("malloc: chunk source exhausted")

// AbortOnFatal controls whether fatalf calls os.Exit(1) after logging
// instead of panicking. Tests want the panic (so they can recover and
// assert); a production host that prefers a hard process abort over an
// unwound panic can set this true during init.
var AbortOnFatal = false

// fatalf logs a diagnostic and panics (or exits when AbortOnFatal is
// set), representing an unrecoverable
// allocator-internal condition: chunk source exhaustion, a retry-logic
// bug, a corrupted free list, or a poisoned/corrupted slot. These are
// program bugs or resource exhaustion, not ordinary error conditions, so
// they are never surfaced as an `error` return.
func fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("malloc: fatal: %s", msg)
	if AbortOnFatal {
		os.Exit(1)
	}
	panic(msg)
}
