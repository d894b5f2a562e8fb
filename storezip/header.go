package storezip

import (
	"encoding/binary"
)

const (
	localHeaderSignature = 0x04034b50
	dirHeaderSignature   = 0x02014b50
	endRecordSignature   = 0x06054b50

	localHeaderLen = 30
	dirHeaderLen   = 46
	endRecordLen   = 22

	// version 1.0, MS-DOS compatible attributes
	zipVersion = 0x000A

	methodStore = 0

	flagUTF8 = 0x0800
)

// entry holds the fields shared by the local header and the central
// directory header of one stored file.
type entry struct {
	name    string
	flags   uint16
	dosTime uint16
	dosDate uint16
	crc32   uint32
	size    uint32
	offset  uint32 // of the local header
}

func (e *entry) appendLocalHeader(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, localHeaderSignature)
	b = le.AppendUint16(b, zipVersion)
	b = le.AppendUint16(b, e.flags)
	b = le.AppendUint16(b, methodStore)
	b = le.AppendUint16(b, e.dosTime)
	b = le.AppendUint16(b, e.dosDate)
	b = le.AppendUint32(b, e.crc32)
	b = le.AppendUint32(b, e.size) // compressed
	b = le.AppendUint32(b, e.size) // uncompressed
	b = le.AppendUint16(b, uint16(len(e.name)))
	b = le.AppendUint16(b, 0) // extra field length
	return append(b, e.name...)
}

func (e *entry) appendDirHeader(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, dirHeaderSignature)
	b = le.AppendUint16(b, zipVersion) // made by
	b = le.AppendUint16(b, zipVersion) // needed to extract
	b = le.AppendUint16(b, e.flags)
	b = le.AppendUint16(b, methodStore)
	b = le.AppendUint16(b, e.dosTime)
	b = le.AppendUint16(b, e.dosDate)
	b = le.AppendUint32(b, e.crc32)
	b = le.AppendUint32(b, e.size)
	b = le.AppendUint32(b, e.size)
	b = le.AppendUint16(b, uint16(len(e.name)))
	b = le.AppendUint16(b, 0) // extra field length
	b = le.AppendUint16(b, 0) // comment length
	b = le.AppendUint16(b, 0) // disk number start
	b = le.AppendUint16(b, 0) // internal attributes
	b = le.AppendUint32(b, 0) // external attributes
	b = le.AppendUint32(b, e.offset)
	return append(b, e.name...)
}

func appendEndRecord(b []byte, entries uint16, dirSize, dirOffset uint32) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, endRecordSignature)
	b = le.AppendUint16(b, 0) // this disk
	b = le.AppendUint16(b, 0) // disk with the central directory
	b = le.AppendUint16(b, entries)
	b = le.AppendUint16(b, entries)
	b = le.AppendUint32(b, dirSize)
	b = le.AppendUint32(b, dirOffset)
	b = le.AppendUint16(b, 0) // comment length
	return b
}
