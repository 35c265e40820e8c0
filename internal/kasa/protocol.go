package kasa

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Port is the TCP/UDP port Kasa devices listen on.
const Port = 9999

// cipherSeed is the initial key byte of the autokey XOR cipher every
// first-generation Kasa device speaks.
const cipherSeed = 171

// Well-known protocol requests.
const (
	sysinfoQuery = `{"system":{"get_sysinfo":null}}`
)

// encrypt applies the Kasa autokey XOR cipher in place.
// Each output byte becomes the key for the next byte.
func encrypt(data []byte) {
	k := byte(cipherSeed)
	for i := range data {
		data[i] ^= k
		k = data[i]
	}
}

// decrypt reverses encrypt in place.
func decrypt(data []byte) {
	k := byte(cipherSeed)
	for i := range data {
		t := data[i] ^ k
		k = data[i]
		data[i] = t
	}
}

// encrypted returns an encrypted copy of request, leaving the input intact.
func encrypted(request string) []byte {
	buf := []byte(request)
	encrypt(buf)
	return buf
}

// call performs one framed request/response exchange over TCP.
//
// The TCP framing is a 4-byte big-endian length prefix followed by the
// cipher-text; the reply uses the same framing. The context deadline bounds
// the whole exchange including dialing.
func call(ctx context.Context, addr string, request string) ([]byte, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting deadline: %w", err)
		}
	}

	body := encrypted(request)
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))

	if _, err := conn.Write(header); err != nil {
		return nil, fmt.Errorf("writing length: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, fmt.Errorf("reading length: %w", err)
	}
	respLen := binary.BigEndian.Uint32(header)
	if respLen == 0 || respLen > maxResponseSize {
		return nil, fmt.Errorf("implausible response length %d from %s", respLen, addr)
	}

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	decrypt(resp)
	return resp, nil
}

// maxResponseSize bounds a single framed response. Sysinfo for a fully
// populated power strip is a few KB; anything larger is a broken peer.
const maxResponseSize = 1 << 20

// hostAddr joins a bare host with the Kasa port, leaving explicit ports alone.
func hostAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(Port))
}

// sysinfo is the subset of a device's get_sysinfo response the bridge needs.
type sysinfo struct {
	Alias      string      `json:"alias"`
	DeviceID   string      `json:"deviceId"`
	Model      string      `json:"model"`
	SWVersion  string      `json:"sw_ver"`
	RelayState *int        `json:"relay_state"`
	RSSI       *int        `json:"rssi"`
	OnTime     *int        `json:"on_time"`
	LEDOff     *int        `json:"led_off"`
	Children   []childInfo `json:"children"`
}

// childInfo is one entry of a hub's get_sysinfo children array.
type childInfo struct {
	ID     string `json:"id"`
	Alias  string `json:"alias"`
	State  *int   `json:"state"`
	OnTime *int   `json:"on_time"`
}

// parseSysinfo peels the response envelope down to the sysinfo object:
// {"system":{"get_sysinfo":{...}}}.
func parseSysinfo(raw []byte) (sysinfo, error) {
	var envelope struct {
		System struct {
			GetSysinfo json.RawMessage `json:"get_sysinfo"`
		} `json:"system"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return sysinfo{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.System.GetSysinfo) == 0 {
		return sysinfo{}, fmt.Errorf("response has no get_sysinfo object")
	}

	var info sysinfo
	if err := json.Unmarshal(envelope.System.GetSysinfo, &info); err != nil {
		return sysinfo{}, fmt.Errorf("decoding sysinfo: %w", err)
	}
	if info.DeviceID == "" {
		return sysinfo{}, fmt.Errorf("sysinfo has no deviceId")
	}
	return info, nil
}

// relayCommand builds a set_relay_state request, scoped to child IDs when
// targeting an outlet or sensor behind a hub.
func relayCommand(on bool, childIDs []string) string {
	state := 0
	if on {
		state = 1
	}
	if len(childIDs) == 0 {
		return fmt.Sprintf(`{"system":{"set_relay_state":{"state":%d}}}`, state)
	}
	ids, _ := json.Marshal(childIDs)
	return fmt.Sprintf(`{"context":{"child_ids":%s},"system":{"set_relay_state":{"state":%d}}}`, ids, state)
}
