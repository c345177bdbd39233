package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// TestVersionNoneHandshake walks the full accept sequence against a
// scripted client: version exchange, a one-entry security list with None,
// the 4-byte OK, ClientInit, and ServerInit.
func TestVersionNoneHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- func() error {
			buf := make([]byte, 12)
			if _, err := readFull(client, buf); err != nil {
				return err
			}
			if string(buf) != "RFB 003.008\n" {
				t.Errorf("server version = %q", buf)
			}
			if _, err := client.Write([]byte("RFB 003.008\n")); err != nil {
				return err
			}

			// Security list: count 1, type None.
			list := make([]byte, 2)
			if _, err := readFull(client, list); err != nil {
				return err
			}
			if list[0] != 1 || list[1] != byte(SecurityNone) {
				t.Errorf("security list = %v", list)
			}
			if _, err := client.Write([]byte{byte(SecurityNone)}); err != nil {
				return err
			}

			// SecurityResult OK.
			res := make([]byte, 4)
			if _, err := readFull(client, res); err != nil {
				return err
			}
			if res[0]|res[1]|res[2]|res[3] != 0 {
				t.Errorf("security result = %v", res)
			}

			// ClientInit: shared.
			if _, err := client.Write([]byte{1}); err != nil {
				return err
			}

			// ServerInit: width, height, 16-byte pf, name.
			head := make([]byte, 2+2+16+4)
			if _, err := readFull(client, head); err != nil {
				return err
			}
			width := uint16(head[0])<<8 | uint16(head[1])
			height := uint16(head[2])<<8 | uint16(head[3])
			if width != 1024 || height != 768 {
				t.Errorf("server init size = %dx%d", width, height)
			}
			nameLen := int(head[20])<<24 | int(head[21])<<16 | int(head[22])<<8 | int(head[23])
			name := make([]byte, nameLen)
			if _, err := readFull(client, name); err != nil {
				return err
			}
			if string(name) != "test" {
				t.Errorf("desktop name = %q", name)
			}
			return nil
		}()
	}()

	w := wire.New(server)
	version, err := Handshake(w)
	require.NoError(t, err)
	require.Equal(t, Version38, version)

	next, err := NegotiateSecurity(w, version, []Authenticator{NoneAuthenticator{}})
	require.NoError(t, err)

	ci, err := ReadClientInit(next)
	require.NoError(t, err)
	require.True(t, ci.Shared)

	require.NoError(t, WriteServerInit(next, ServerInit{
		Width: 1024, Height: 768,
		Format:      pixelformat.RGBA32,
		DesktopName: "test",
	}))

	require.NoError(t, <-done)
}

// Test33ForcesNoneOrVNC checks the 3.3 path writes a single u32 type with
// no negotiation.
func Test33ForcesNoneOrVNC(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- func() error {
			forced := make([]byte, 4)
			if _, err := readFull(client, forced); err != nil {
				return err
			}
			if forced[3] != byte(SecurityNone) {
				t.Errorf("forced type = %v", forced)
			}
			return nil
		}()
	}()

	w := wire.New(server)
	_, err := NegotiateSecurity(w, Version33, []Authenticator{NoneAuthenticator{}})
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
