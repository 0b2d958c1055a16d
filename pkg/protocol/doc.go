/*
Package protocol defines the messages exchanged by two coherence engines and their
binary frame encoding.

Every frame starts with a fixed 32 byte big-endian header:

	magic    u16  0x4D53 ("MS")
	version  u8   1
	kind     u8   RequestPage | PageReply | Invalidate | InvalidateAck
	flags    u8   bit 0: FlagNoData
	reserved u8 x3
	id       u64  correlation id, echoed by replies and acks
	addr     u64  page address
	size     u32  requested or carried page size
	length   u32  payload length

followed by length bytes of payload. Only PageReply carries a payload.
*/
package protocol
