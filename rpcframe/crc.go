// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rpcframe

import "hash/crc32"

// crc32cTable is the Castagnoli polynomial table used by the frame-trailer
// helpers below. Stub and Skeleton do not call them: frames carry no
// trailer.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// appendCRC32C appends a 4-byte little-endian CRC32C trailer over header
// and payload to buf.
func appendCRC32C(buf, header, payload []byte) []byte {
	sum := crc32.Checksum(header, crc32cTable)
	sum = crc32.Update(sum, crc32cTable, payload)
	return append(buf,
		byte(sum), byte(sum>>8), byte(sum>>16), byte(sum>>24))
}

// verifyCRC32C reports whether trailer matches the CRC32C of header+payload.
func verifyCRC32C(header, payload, trailer []byte) bool {
	if len(trailer) != 4 {
		return false
	}
	want := uint32(trailer[0]) | uint32(trailer[1])<<8 | uint32(trailer[2])<<16 | uint32(trailer[3])<<24
	got := crc32.Checksum(header, crc32cTable)
	got = crc32.Update(got, crc32cTable, payload)
	return got == want
}
