package zkteco

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	apperrors "github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/errors"
)

// Client is a connection to one terminal. Not safe for concurrent use;
// each device worker owns its client.
type Client struct {
	addr    string
	timeout time.Duration

	conn    net.Conn
	session uint16
	reply   uint16

	// seen dedups records across polls within one connection; terminals
	// return the full log on every read.
	seen map[string]struct{}
}

// NewClient creates a client for one terminal address ("ip:port").
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout, seen: make(map[string]struct{})}
}

// Connect dials the terminal and performs the session handshake.
func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return apperrors.DeviceTransport(err, "failed to dial terminal")
	}
	c.conn = conn
	c.session = 0
	c.reply = 0
	c.seen = make(map[string]struct{})

	resp, err := c.roundTrip(cmdConnect, nil)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	// Terminals with a comm key answer CMD_ACK_UNAUTH; the fleet runs
	// keyless, so anything but plain ACK is a handshake failure.
	if resp.Command != cmdAckOK {
		c.conn.Close()
		c.conn = nil
		return apperrors.DeviceTransport(fmt.Errorf("handshake reply %d", resp.Command), "terminal refused connection")
	}
	c.session = resp.Session
	return nil
}

// Close sends CMD_EXIT (best effort) and tears the connection down.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	_, _ = c.roundTrip(cmdExit, nil)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether the session handshake has completed.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// PollNew reads the terminal's attendance log and returns only records not
// seen earlier in this connection.
func (c *Client) PollNew(ctx context.Context) ([]Record, error) {
	all, err := c.readAttendanceLog(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make([]Record, 0, 4)
	for _, r := range all {
		key := r.Key()
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh, nil
}

// readAttendanceLog issues CMD_ATTLOG_RRQ and collects the reply, which is
// either inline in the ACK or streamed as CMD_PREPARE_DATA + CMD_DATA
// frames.
func (c *Client) readAttendanceLog(ctx context.Context) ([]Record, error) {
	if c.conn == nil {
		return nil, apperrors.DeviceTransport(fmt.Errorf("not connected"), "poll on closed client")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	} else {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	resp, err := c.roundTrip(cmdAttLogRead, nil)
	if err != nil {
		return nil, err
	}

	var raw []byte
	switch resp.Command {
	case cmdAckOK:
		raw = resp.Data
	case cmdPrepareData:
		if len(resp.Data) < 4 {
			return nil, apperrors.DeviceTransport(fmt.Errorf("prepare frame %d bytes", len(resp.Data)), "corrupt device reply")
		}
		total := binary.LittleEndian.Uint32(resp.Data[:4])
		raw = make([]byte, 0, total)
		for uint32(len(raw)) < total {
			pkt, err := c.readPacket()
			if err != nil {
				return nil, err
			}
			switch pkt.Command {
			case cmdData:
				raw = append(raw, pkt.Data...)
			case cmdAckOK:
				// Early terminator; take what arrived.
				return parseLog(raw), nil
			default:
				return nil, apperrors.DeviceTransport(fmt.Errorf("unexpected frame %d mid-stream", pkt.Command), "corrupt device reply")
			}
		}
		// Trailing ACK closes the transfer on most firmwares; tolerate
		// its absence.
		_ = c.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, _ = c.readPacket()
		_ = c.conn.SetReadDeadline(time.Time{})
	case cmdAckError, cmdAckUnauth:
		return nil, apperrors.DeviceTransport(fmt.Errorf("log read reply %d", resp.Command), "terminal rejected log read")
	default:
		return nil, apperrors.DeviceTransport(fmt.Errorf("log read reply %d", resp.Command), "corrupt device reply")
	}

	return parseLog(raw), nil
}

// parseLog strips the 4-byte size prefix some firmwares include before the
// record array.
func parseLog(raw []byte) []Record {
	if len(raw) >= 4 && len(raw)%recordSize != 0 && (len(raw)-4)%recordSize == 0 {
		raw = raw[4:]
	}
	return parseRecords(raw)
}

// roundTrip sends one command and reads one reply frame.
func (c *Client) roundTrip(command uint16, data []byte) (*packet, error) {
	c.reply++
	pkt := encodePacket(command, c.session, c.reply, data)
	if _, err := c.conn.Write(wrapTCP(pkt)); err != nil {
		return nil, apperrors.DeviceTransport(err, "failed to send command")
	}
	return c.readPacket()
}

// readPacket reads one TCP-framed protocol packet.
func (c *Client) readPacket() (*packet, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(c.conn, head); err != nil {
		return nil, apperrors.DeviceTransport(err, "failed to read frame header")
	}
	for i, b := range tcpMagic {
		if head[i] != b {
			return nil, apperrors.DeviceTransport(fmt.Errorf("bad frame magic % x", head[:4]), "corrupt device reply")
		}
	}

	length := binary.LittleEndian.Uint32(head[4:8])
	if length < headerSize || length > 1<<20 {
		return nil, apperrors.DeviceTransport(fmt.Errorf("frame length %d", length), "corrupt device reply")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, apperrors.DeviceTransport(err, "failed to read frame body")
	}
	return decodePacket(body)
}
