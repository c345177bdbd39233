package fuse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequestRoundTrip(t *testing.T) {
	in := InitRequest{Version: ProtocolVersion, MountPoint: "/mnt/ltsm"}
	out, err := DecodeInitRequest(in.Encode())
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestOpenReadReleaseRoundTrip(t *testing.T) {
	or := OpenRequest{Flags: 0, Path: "/a/b.txt"}
	got, err := DecodeOpenRequest(or.Encode())
	require.NoError(t, err)
	require.Equal(t, or, got)

	rr := ReadRequest{FD: 3, Size: 4096, Offset: 128}
	gotRR, err := DecodeReadRequest(rr.Encode())
	require.NoError(t, err)
	require.Equal(t, rr, gotRR)

	rel := ReleaseRequest{FD: 3}
	gotRel, err := DecodeReleaseRequest(rel.Encode())
	require.NoError(t, err)
	require.Equal(t, rel, gotRel)
}

func TestReplyRoundTrip(t *testing.T) {
	r := Reply{Op: OpGetAttr, Errno: 0, Payload: []byte{1, 2, 3}}
	got, err := DecodeReply(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestStatRoundTrip(t *testing.T) {
	s := Stat{Inode: 42, Mode: 0100644, Size: 1024, Mtime: 1700000000, Nlink: 1, Uid: 1000, Gid: 1000}
	got, err := DecodeStat(s.Encode())
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRenameRequestRoundTrip(t *testing.T) {
	rr := RenameRequest{OldPath: "/a", NewPath: "/b"}
	got, err := DecodeRenameRequest(rr.Encode())
	require.NoError(t, err)
	require.Equal(t, rr, got)
}
