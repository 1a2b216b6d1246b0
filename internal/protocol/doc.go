// Package protocol implements the binary wire format spoken between the world
// server and its clients.
//
// Every message travels in a frame with a fixed 12-byte big-endian header:
//
//	[type:2][payloadLength:4][sequence:4][flags:1][checksum:1][payload...]
//
// Payloads larger than CompressionThreshold are zlib-compressed when that
// shrinks them, and FlagCompressed is set. The checksum is the low byte of the
// sum of the uncompressed payload bytes. A frame that fails its checksum is
// fatal to the connection; decoders never try to resynchronize.
//
// Hot-path payloads (movement, damage, spawns) use fixed-width packing.
// Variable-shape payloads (chat, login, territory status) use KV, a
// self-describing key/value encoding.
package protocol
