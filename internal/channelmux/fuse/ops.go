// Package fuse implements the FUSE bridge sub-protocol layered on a
// channelmux.Channel: the server end drives a local
// FUSE mount point, the client end proxies POSIX file operations against
// a real root path. All op fields are little-endian; the server-end mount
// uses github.com/hanwen/go-fuse/v2/fuse.
package fuse

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Op codes.
const (
	OpInit     uint16 = 0xFF01
	OpQuit     uint16 = 0xFF02
	OpGetAttr  uint16 = 0xFF03
	OpReadDir  uint16 = 0xFF04
	OpOpen     uint16 = 0xFF05
	OpRead     uint16 = 0xFF06
	OpRelease  uint16 = 0xFF07
	OpAccess   uint16 = 0xFF08
	OpRmDir    uint16 = 0xFF09
	OpUnLink   uint16 = 0xFF10
	OpRename   uint16 = 0xFF11
	OpTruncate uint16 = 0xFF12
	OpWrite    uint16 = 0xFF13
	OpCreate   uint16 = 0xFF14
	OpLookup   uint16 = 0xFF15
)

// ProtocolVersion is the FUSE bridge wire version this module speaks.
const ProtocolVersion uint16 = 2

// Request is one client-bound bridge call: a u16 op code followed by
// op-specific little-endian fields.
type Request struct {
	Op   uint16
	Body []byte
}

// Encode serializes the op code and body.
func (r Request) Encode() []byte {
	out := make([]byte, 2+len(r.Body))
	binary.LittleEndian.PutUint16(out[0:2], r.Op)
	copy(out[2:], r.Body)
	return out
}

// DecodeRequest parses a Request from a channel payload.
func DecodeRequest(buf []byte) (Request, error) {
	if len(buf) < 2 {
		return Request{}, ltsmerr.New(ltsmerr.Format, "fuse request too short")
	}
	return Request{Op: binary.LittleEndian.Uint16(buf[0:2]), Body: buf[2:]}, nil
}

// Reply is every bridge call's response shape: `{opCode, errno, payload}`.
type Reply struct {
	Op      uint16
	Errno   uint32
	Payload []byte
}

// Encode serializes a Reply.
func (r Reply) Encode() []byte {
	out := make([]byte, 6+len(r.Payload))
	binary.LittleEndian.PutUint16(out[0:2], r.Op)
	binary.LittleEndian.PutUint32(out[2:6], r.Errno)
	copy(out[6:], r.Payload)
	return out
}

// DecodeReply parses a Reply from a channel payload.
func DecodeReply(buf []byte) (Reply, error) {
	if len(buf) < 6 {
		return Reply{}, ltsmerr.New(ltsmerr.Format, "fuse reply too short")
	}
	return Reply{
		Op:      binary.LittleEndian.Uint16(buf[0:2]),
		Errno:   binary.LittleEndian.Uint32(buf[2:6]),
		Payload: buf[6:],
	}, nil
}

func putString(dst []byte, s string) {
	binary.LittleEndian.PutUint16(dst, uint16(len(s)))
	copy(dst[2:], s)
}

func stringLen(s string) int { return 2 + len(s) }

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, ltsmerr.New(ltsmerr.Format, "fuse string length truncated")
	}
	n := int(binary.LittleEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, ltsmerr.New(ltsmerr.Format, "fuse string body truncated")
	}
	return string(buf[:n]), buf[n:], nil
}

// InitRequest: `u16 ver, u16 len, bytes[len] mountPoint`.
type InitRequest struct {
	Version    uint16
	MountPoint string
}

func (r InitRequest) Encode() []byte {
	buf := make([]byte, 2+stringLen(r.MountPoint))
	binary.LittleEndian.PutUint16(buf[0:2], r.Version)
	putString(buf[2:], r.MountPoint)
	return buf
}

func DecodeInitRequest(buf []byte) (InitRequest, error) {
	if len(buf) < 2 {
		return InitRequest{}, ltsmerr.New(ltsmerr.Format, "fuse init truncated")
	}
	ver := binary.LittleEndian.Uint16(buf[0:2])
	mp, _, err := readString(buf[2:])
	if err != nil {
		return InitRequest{}, err
	}
	return InitRequest{Version: ver, MountPoint: mp}, nil
}

// OpenRequest: `u32 flags, u16 len, bytes[len] path`.
type OpenRequest struct {
	Flags uint32
	Path  string
}

func (r OpenRequest) Encode() []byte {
	buf := make([]byte, 4+stringLen(r.Path))
	binary.LittleEndian.PutUint32(buf[0:4], r.Flags)
	putString(buf[4:], r.Path)
	return buf
}

func DecodeOpenRequest(buf []byte) (OpenRequest, error) {
	if len(buf) < 4 {
		return OpenRequest{}, ltsmerr.New(ltsmerr.Format, "fuse open truncated")
	}
	flags := binary.LittleEndian.Uint32(buf[0:4])
	path, _, err := readString(buf[4:])
	if err != nil {
		return OpenRequest{}, err
	}
	return OpenRequest{Flags: flags, Path: path}, nil
}

// ReadRequest: `u32 fd, u64 size, u64 offset`.
type ReadRequest struct {
	FD     uint32
	Size   uint64
	Offset uint64
}

func (r ReadRequest) Encode() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], r.FD)
	binary.LittleEndian.PutUint64(buf[4:12], r.Size)
	binary.LittleEndian.PutUint64(buf[12:20], r.Offset)
	return buf
}

func DecodeReadRequest(buf []byte) (ReadRequest, error) {
	if len(buf) < 20 {
		return ReadRequest{}, ltsmerr.New(ltsmerr.Format, "fuse read truncated")
	}
	return ReadRequest{
		FD:     binary.LittleEndian.Uint32(buf[0:4]),
		Size:   binary.LittleEndian.Uint64(buf[4:12]),
		Offset: binary.LittleEndian.Uint64(buf[12:20]),
	}, nil
}

// ReleaseRequest: `u32 fd`.
type ReleaseRequest struct{ FD uint32 }

func (r ReleaseRequest) Encode() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, r.FD)
	return buf
}

func DecodeReleaseRequest(buf []byte) (ReleaseRequest, error) {
	if len(buf) < 4 {
		return ReleaseRequest{}, ltsmerr.New(ltsmerr.Format, "fuse release truncated")
	}
	return ReleaseRequest{FD: binary.LittleEndian.Uint32(buf[0:4])}, nil
}

// PathRequest covers the several ops whose only field is a path: GetAttr,
// ReadDir, Access(+mode), RmDir, UnLink, Lookup.
type PathRequest struct {
	Path string
	Mode uint32 // only meaningful for Access
}

func (r PathRequest) Encode() []byte {
	buf := make([]byte, 4+stringLen(r.Path))
	binary.LittleEndian.PutUint32(buf[0:4], r.Mode)
	putString(buf[4:], r.Path)
	return buf
}

func DecodePathRequest(buf []byte) (PathRequest, error) {
	if len(buf) < 4 {
		return PathRequest{}, ltsmerr.New(ltsmerr.Format, "fuse path request truncated")
	}
	mode := binary.LittleEndian.Uint32(buf[0:4])
	path, _, err := readString(buf[4:])
	if err != nil {
		return PathRequest{}, err
	}
	return PathRequest{Path: path, Mode: mode}, nil
}

// RenameRequest: old and new paths.
type RenameRequest struct{ OldPath, NewPath string }

func (r RenameRequest) Encode() []byte {
	buf := make([]byte, stringLen(r.OldPath)+stringLen(r.NewPath))
	putString(buf, r.OldPath)
	putString(buf[stringLen(r.OldPath):], r.NewPath)
	return buf
}

func DecodeRenameRequest(buf []byte) (RenameRequest, error) {
	oldPath, rest, err := readString(buf)
	if err != nil {
		return RenameRequest{}, err
	}
	newPath, _, err := readString(rest)
	if err != nil {
		return RenameRequest{}, err
	}
	return RenameRequest{OldPath: oldPath, NewPath: newPath}, nil
}

// TruncateRequest: path + new size.
type TruncateRequest struct {
	Path string
	Size uint64
}

func (r TruncateRequest) Encode() []byte {
	buf := make([]byte, 8+stringLen(r.Path))
	binary.LittleEndian.PutUint64(buf[0:8], r.Size)
	putString(buf[8:], r.Path)
	return buf
}

func DecodeTruncateRequest(buf []byte) (TruncateRequest, error) {
	if len(buf) < 8 {
		return TruncateRequest{}, ltsmerr.New(ltsmerr.Format, "fuse truncate truncated")
	}
	size := binary.LittleEndian.Uint64(buf[0:8])
	path, _, err := readString(buf[8:])
	if err != nil {
		return TruncateRequest{}, err
	}
	return TruncateRequest{Path: path, Size: size}, nil
}

// WriteRequest: fd, offset, data.
type WriteRequest struct {
	FD     uint32
	Offset uint64
	Data   []byte
}

func (r WriteRequest) Encode() []byte {
	buf := make([]byte, 12+len(r.Data))
	binary.LittleEndian.PutUint32(buf[0:4], r.FD)
	binary.LittleEndian.PutUint64(buf[4:12], r.Offset)
	copy(buf[12:], r.Data)
	return buf
}

func DecodeWriteRequest(buf []byte) (WriteRequest, error) {
	if len(buf) < 12 {
		return WriteRequest{}, ltsmerr.New(ltsmerr.Format, "fuse write truncated")
	}
	return WriteRequest{
		FD:     binary.LittleEndian.Uint32(buf[0:4]),
		Offset: binary.LittleEndian.Uint64(buf[4:12]),
		Data:   buf[12:],
	}, nil
}

// CreateRequest: flags, mode, path.
type CreateRequest struct {
	Flags uint32
	Mode  uint32
	Path  string
}

func (r CreateRequest) Encode() []byte {
	buf := make([]byte, 8+stringLen(r.Path))
	binary.LittleEndian.PutUint32(buf[0:4], r.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], r.Mode)
	putString(buf[8:], r.Path)
	return buf
}

func DecodeCreateRequest(buf []byte) (CreateRequest, error) {
	if len(buf) < 8 {
		return CreateRequest{}, ltsmerr.New(ltsmerr.Format, "fuse create truncated")
	}
	flags := binary.LittleEndian.Uint32(buf[0:4])
	mode := binary.LittleEndian.Uint32(buf[4:8])
	path, _, err := readString(buf[8:])
	if err != nil {
		return CreateRequest{}, err
	}
	return CreateRequest{Flags: flags, Mode: mode, Path: path}, nil
}

// Stat mirrors the subset of POSIX stat fields the bridge carries in
// GetAttr/ReadDir/Init's root-inode snapshot replies.
type Stat struct {
	Inode uint64
	Mode  uint32
	Size  uint64
	Mtime int64
	Nlink uint32
	Uid   uint32
	Gid   uint32
}

func (s Stat) Encode() []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf[0:8], s.Inode)
	binary.LittleEndian.PutUint32(buf[8:12], s.Mode)
	binary.LittleEndian.PutUint64(buf[12:20], s.Size)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(s.Mtime))
	binary.LittleEndian.PutUint32(buf[28:32], s.Nlink)
	binary.LittleEndian.PutUint32(buf[32:36], s.Uid)
	binary.LittleEndian.PutUint32(buf[36:40], s.Gid)
	return buf
}

func DecodeStat(buf []byte) (Stat, error) {
	if len(buf) < 40 {
		return Stat{}, ltsmerr.New(ltsmerr.Format, "fuse stat truncated")
	}
	return Stat{
		Inode: binary.LittleEndian.Uint64(buf[0:8]),
		Mode:  binary.LittleEndian.Uint32(buf[8:12]),
		Size:  binary.LittleEndian.Uint64(buf[12:20]),
		Mtime: int64(binary.LittleEndian.Uint64(buf[20:28])),
		Nlink: binary.LittleEndian.Uint32(buf[28:32]),
		Uid:   binary.LittleEndian.Uint32(buf[32:36]),
		Gid:   binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}
