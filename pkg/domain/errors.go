package domain

import "errors"

// ErrNotFound is returned when an address does not belong to any registered page.
var ErrNotFound = errors.New("page not found")

// ErrTransport is returned when a protocol message could not be sent or received.
var ErrTransport = errors.New("transport failure")

// ErrRelease is returned when the physical backing of a page could not be released.
var ErrRelease = errors.New("release failure")

// ErrInit is returned when a region could not be registered.
var ErrInit = errors.New("init failure")

// ErrTimeout is returned when a reply did not arrive within the configured wait.
var ErrTimeout = errors.New("timed out waiting for peer")

// ErrClosed is returned to waiters released by connection teardown.
var ErrClosed = errors.New("engine closed")

// ErrNotInitialized is returned when an operation runs before any region was registered.
var ErrNotInitialized = errors.New("engine not initialized")

// ErrOutOfRange is returned when a write does not fit inside its page.
var ErrOutOfRange = errors.New("write exceeds page bounds")

// ErrShortBuffer is returned when a fault destination is smaller than a page.
var ErrShortBuffer = errors.New("destination smaller than page")

// ErrUnexpectedReply is returned when a reply does not match any outstanding request.
var ErrUnexpectedReply = errors.New("no request waiting for reply")

// ErrRegionOverlap is returned when a region overlaps one already registered.
var ErrRegionOverlap = errors.New("region overlaps registered pages")

// ErrMisaligned is returned when a region base is not page aligned.
var ErrMisaligned = errors.New("address not page aligned")

// ErrPeerNotFound is returned when discovery has no peer for a region.
var ErrPeerNotFound = errors.New("peer not found")
