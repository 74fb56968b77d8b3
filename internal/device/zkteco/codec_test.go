package zkteco

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	raw := encodePacket(cmdAttLogRead, 0x1234, 7, []byte{0xde, 0xad})

	pkt, err := decodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(cmdAttLogRead), pkt.Command)
	assert.Equal(t, uint16(0x1234), pkt.Session)
	assert.Equal(t, uint16(7), pkt.Reply)
	assert.Equal(t, []byte{0xde, 0xad}, pkt.Data)
}

func TestDecodePacketRejectsBadChecksum(t *testing.T) {
	raw := encodePacket(cmdConnect, 0, 1, nil)
	raw[0] ^= 0xff

	_, err := decodePacket(raw)
	assert.Error(t, err)
}

func TestDecodePacketRejectsShortBuffer(t *testing.T) {
	_, err := decodePacket([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestWrapTCPFraming(t *testing.T) {
	pkt := encodePacket(cmdConnect, 0, 1, nil)
	framed := wrapTCP(pkt)

	assert.Equal(t, tcpMagic, framed[:4])
	assert.Equal(t, uint32(len(pkt)), binary.LittleEndian.Uint32(framed[4:8]))
	assert.Equal(t, pkt, framed[8:])
}

func TestPackedTimeRoundTrip(t *testing.T) {
	instants := []time.Time{
		time.Date(2026, time.March, 2, 7, 55, 30, 0, time.Local),
		time.Date(2026, time.December, 31, 23, 59, 59, 0, time.Local),
		time.Date(2000, time.January, 1, 0, 0, 0, 0, time.Local),
	}
	for _, want := range instants {
		got := decodePackedTime(encodePackedTime(want))
		assert.True(t, got.Equal(want), "want %v got %v", want, got)
	}
}

func makeRecord(userID string, ts time.Time, status, punch byte) []byte {
	chunk := make([]byte, recordSize)
	copy(chunk[2:26], userID)
	chunk[26] = status
	binary.LittleEndian.PutUint32(chunk[27:31], encodePackedTime(ts))
	chunk[31] = punch
	return chunk
}

func TestParseRecords(t *testing.T) {
	ts1 := time.Date(2026, time.March, 2, 7, 55, 0, 0, time.Local)
	ts2 := time.Date(2026, time.March, 2, 17, 3, 12, 0, time.Local)

	data := append(makeRecord("42", ts1, 1, 0), makeRecord("1234567", ts2, 0, 1)...)
	// Trailing garbage shorter than a record is ignored.
	data = append(data, 0x01, 0x02)

	records := parseRecords(data)
	require.Len(t, records, 2)

	assert.Equal(t, "42", records[0].UserID)
	assert.True(t, records[0].Timestamp.Equal(ts1))
	assert.Equal(t, byte(1), records[0].Status)

	assert.Equal(t, "1234567", records[1].UserID)
	assert.True(t, records[1].Timestamp.Equal(ts2))
	assert.Equal(t, byte(1), records[1].Punch)
}

func TestParseLogStripsSizePrefix(t *testing.T) {
	ts := time.Date(2026, time.March, 2, 7, 55, 0, 0, time.Local)
	rec := makeRecord("42", ts, 1, 0)

	prefixed := make([]byte, 4, 4+len(rec))
	binary.LittleEndian.PutUint32(prefixed, uint32(len(rec)))
	prefixed = append(prefixed, rec...)

	records := parseLog(prefixed)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].UserID)

	// Without a prefix, records parse as-is.
	records = parseLog(rec)
	require.Len(t, records, 1)
}

func TestRecordKeyDistinguishesInstants(t *testing.T) {
	ts := time.Date(2026, time.March, 2, 7, 55, 0, 0, time.Local)
	a := Record{UserID: "42", Timestamp: ts}
	b := Record{UserID: "42", Timestamp: ts.Add(time.Second)}

	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), Record{UserID: "42", Timestamp: ts}.Key())
}
