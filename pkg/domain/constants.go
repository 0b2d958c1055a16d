package domain

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 4096

// AccessKind identifies the kind of access that raised a fault.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
)

func (k AccessKind) String() string {
	switch k {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}
