package protocol

import "fmt"

// Kind identifies a protocol message.
type Kind uint8

const (
	KindRequestPage   Kind = iota + 1 // requester -> owner
	KindPageReply                     // owner -> requester
	KindInvalidate                    // new writer -> old holder
	KindInvalidateAck                 // old holder -> new writer
)

func (k Kind) String() string {
	switch k {
	case KindRequestPage:
		return "RequestPage"
	case KindPageReply:
		return "PageReply"
	case KindInvalidate:
		return "Invalidate"
	case KindInvalidateAck:
		return "InvalidateAck"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool {
	return k >= KindRequestPage && k <= KindInvalidateAck
}

// Flags carries per-message bits.
type Flags uint8

const (
	// FlagNoData marks a PageReply sent by a node that had no valid copy of the page.
	FlagNoData Flags = 1 << iota
)

// Message is a single protocol message.
type Message struct {
	Kind  Kind
	Flags Flags
	ID    uint64
	Addr  uint64
	Size  uint32
	Data  []byte
}

// RequestPage asks the peer for the contents of the page at addr.
func RequestPage(id, addr uint64, size int) *Message {
	return &Message{Kind: KindRequestPage, ID: id, Addr: addr, Size: uint32(size)}
}

// PageReply answers the request id with the page bytes.
func PageReply(id, addr uint64, data []byte) *Message {
	return &Message{Kind: KindPageReply, ID: id, Addr: addr, Size: uint32(len(data)), Data: data}
}

// EmptyReply answers the request id with size zero bytes and FlagNoData set.
func EmptyReply(id, addr uint64, size int) *Message {
	m := PageReply(id, addr, make([]byte, size))
	m.Flags |= FlagNoData
	return m
}

// Invalidate tells the peer to drop its copy of the page at addr.
func Invalidate(id, addr uint64) *Message {
	return &Message{Kind: KindInvalidate, ID: id, Addr: addr}
}

// InvalidateAck confirms the invalidate id.
func InvalidateAck(id, addr uint64) *Message {
	return &Message{Kind: KindInvalidateAck, ID: id, Addr: addr}
}

// NoData reports whether the sender had no valid copy.
func (m *Message) NoData() bool {
	return m.Flags&FlagNoData != 0
}

func (m *Message) String() string {
	return fmt.Sprintf("%s{id=%d addr=%#x size=%d len=%d}", m.Kind, m.ID, m.Addr, m.Size, len(m.Data))
}
