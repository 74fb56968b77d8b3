// Package zkteco speaks the ZKTeco push-terminal TCP protocol: framed
// command packets with a ones'-complement checksum, and the packed
// attendance record format the terminals return for log reads.
package zkteco

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	apperrors "github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/errors"
)

// Command codes.
const (
	cmdConnect     = 1000
	cmdExit        = 1001
	cmdAckOK       = 2000
	cmdAckError    = 2001
	cmdAckUnauth   = 2005
	cmdPrepareData = 1500
	cmdData        = 1501
	cmdAttLogRead  = 13
)

// tcpMagic prefixes every TCP frame, followed by a uint32 payload length.
var tcpMagic = []byte{0x50, 0x50, 0x82, 0x7d}

const headerSize = 8

// packet is one decoded protocol message.
type packet struct {
	Command uint16
	Session uint16
	Reply   uint16
	Data    []byte
}

// encodePacket builds header+data with the checksum filled in.
func encodePacket(command, session, reply uint16, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], command)
	binary.LittleEndian.PutUint16(buf[4:6], session)
	binary.LittleEndian.PutUint16(buf[6:8], reply)
	copy(buf[headerSize:], data)
	binary.LittleEndian.PutUint16(buf[2:4], checksum(buf))
	return buf
}

// decodePacket validates the checksum and splits header from data.
func decodePacket(buf []byte) (*packet, error) {
	if len(buf) < headerSize {
		return nil, apperrors.DeviceTransport(fmt.Errorf("short packet: %d bytes", len(buf)), "truncated device reply")
	}

	want := binary.LittleEndian.Uint16(buf[2:4])
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	binary.LittleEndian.PutUint16(scratch[2:4], 0)
	if got := checksum(scratch); got != want {
		return nil, apperrors.DeviceTransport(fmt.Errorf("checksum mismatch: got %d want %d", got, want), "corrupt device reply")
	}

	return &packet{
		Command: binary.LittleEndian.Uint16(buf[0:2]),
		Session: binary.LittleEndian.Uint16(buf[4:6]),
		Reply:   binary.LittleEndian.Uint16(buf[6:8]),
		Data:    buf[headerSize:],
	}, nil
}

// checksum is the protocol's 16-bit ones'-complement sum over the whole
// packet with the checksum field zeroed.
func checksum(buf []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(buf); i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(buf[i : i+2]))
	}
	if len(buf)%2 == 1 {
		sum += uint32(buf[len(buf)-1])
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(^sum) & 0xffff
}

// wrapTCP prefixes a packet with the TCP magic and length.
func wrapTCP(pkt []byte) []byte {
	buf := make([]byte, 8+len(pkt))
	copy(buf, tcpMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(pkt)))
	copy(buf[8:], pkt)
	return buf
}

// Record is one raw attendance event as the terminal stores it.
type Record struct {
	UserID    string
	Timestamp time.Time
	Status    byte
	Punch     byte
}

// Key identifies a record for in-session dedup.
func (r Record) Key() string {
	return r.UserID + "|" + r.Timestamp.Format("2006-01-02 15:04:05")
}

const recordSize = 40

// parseRecords decodes the 40-byte attendance records from a log read.
// Short trailing bytes are dropped.
func parseRecords(data []byte) []Record {
	records := make([]Record, 0, len(data)/recordSize)
	for len(data) >= recordSize {
		chunk := data[:recordSize]
		data = data[recordSize:]

		userID := string(bytes.TrimRight(chunk[2:26], "\x00"))
		ts := decodePackedTime(binary.LittleEndian.Uint32(chunk[27:31]))

		records = append(records, Record{
			UserID:    userID,
			Timestamp: ts,
			Status:    chunk[26],
			Punch:     chunk[31],
		})
	}
	return records
}

// decodePackedTime expands the terminal's packed uint32 timestamp. The
// encoding divides out seconds, minutes, hours, then day (1-31), month
// (1-12) and a year offset from 2000.
func decodePackedTime(t uint32) time.Time {
	second := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12) + 1
	t /= 12
	year := int(t) + 2000

	return time.Date(year, month, day, hour, minute, second, 0, time.Local)
}

// encodePackedTime is the inverse of decodePackedTime, used by tests and
// by the device simulator.
func encodePackedTime(ts time.Time) uint32 {
	t := uint32(ts.Year()-2000)*12*31 + uint32(int(ts.Month())-1)*31 + uint32(ts.Day()-1)
	t = t*24 + uint32(ts.Hour())
	t = t*60 + uint32(ts.Minute())
	t = t*60 + uint32(ts.Second())
	return t
}
