package fuse

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Node is the server-end FUSE inode: every POSIX operation the kernel
// delivers here is forwarded across the Bridge to the client-end Proxy and
// the client's reply is translated back into a go-fuse result: the server
// end drives a local FUSE mount point while the client end proxies the
// POSIX file operations.
type Node struct {
	fs.Inode
	bridge *Bridge
	rel    string // path relative to the bridge's root, "" for the mount root
}

var (
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeCreater   = (*Node)(nil)
	_ fs.NodeUnlinker  = (*Node)(nil)
	_ fs.NodeRmdirer   = (*Node)(nil)
	_ fs.NodeRenamer   = (*Node)(nil)
)

func (n *Node) childPath(name string) string { return path.Join("/", n.rel, name) }

func applyStat(out *fuse.Attr, st Stat) {
	out.Ino = st.Inode
	out.Mode = st.Mode
	out.Size = st.Size
	out.Mtime = uint64(st.Mtime)
	out.Nlink = st.Nlink
	out.Uid = st.Uid
	out.Gid = st.Gid
}

func errnoFromReply(r Reply) syscall.Errno {
	return syscall.Errno(r.Errno)
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	reply, err := n.bridge.Call(Request{Op: OpGetAttr, Body: PathRequest{Path: n.childPath("")}.Encode()})
	if err != nil {
		return syscall.EIO
	}
	if reply.Errno != 0 {
		return errnoFromReply(reply)
	}
	st, err := DecodeStat(reply.Payload)
	if err != nil {
		return syscall.EIO
	}
	applyStat(&out.Attr, st)
	return 0
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childRel := path.Join(n.rel, name)
	reply, err := n.bridge.Call(Request{Op: OpLookup, Body: PathRequest{Path: "/" + childRel}.Encode()})
	if err != nil {
		return nil, syscall.EIO
	}
	if reply.Errno != 0 {
		return nil, errnoFromReply(reply)
	}
	st, err := DecodeStat(reply.Payload)
	if err != nil {
		return nil, syscall.EIO
	}
	applyStat(&out.Attr, st)
	child := &Node{bridge: n.bridge, rel: childRel}
	mode := uint32(fuse.S_IFREG)
	if st.Mode&syscall.S_IFDIR != 0 {
		mode = fuse.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode, Ino: st.Inode}), 0
}

type dirStream struct {
	entries []fuse.DirEntry
	i       int
}

func (d *dirStream) HasNext() bool { return d.i < len(d.entries) }
func (d *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := d.entries[d.i]
	d.i++
	return e, 0
}
func (d *dirStream) Close() {}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	reply, err := n.bridge.Call(Request{Op: OpReadDir, Body: PathRequest{Path: "/" + n.rel}.Encode()})
	if err != nil {
		return nil, syscall.EIO
	}
	if reply.Errno != 0 {
		return nil, errnoFromReply(reply)
	}
	entries, err := decodeDirEntries(reply.Payload)
	if err != nil {
		return nil, syscall.EIO
	}
	return &dirStream{entries: entries}, 0
}

func decodeDirEntries(buf []byte) ([]fuse.DirEntry, error) {
	var out []fuse.DirEntry
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, ltsmerr.New(ltsmerr.Format, "fuse readdir entry truncated")
		}
		nameLen := int(buf[0]) | int(buf[1])<<8
		buf = buf[2:]
		if len(buf) < nameLen {
			return nil, ltsmerr.New(ltsmerr.Format, "fuse readdir name truncated")
		}
		name := string(buf[:nameLen])
		buf = buf[nameLen:]
		st, err := DecodeStat(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[40:]
		mode := uint32(fuse.S_IFREG)
		if st.Mode&syscall.S_IFDIR != 0 {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: name, Ino: st.Inode, Mode: mode})
	}
	return out, nil
}

// FileHandle is the server-end open-file handle, forwarding Read/Write to
// the proxied file descriptor on the client end.
type FileHandle struct {
	bridge *Bridge
	fd     uint32
}

var (
	_ fs.FileReader   = (*FileHandle)(nil)
	_ fs.FileWriter   = (*FileHandle)(nil)
	_ fs.FileReleaser = (*FileHandle)(nil)
)

func (fh *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	reply, err := fh.bridge.Call(Request{Op: OpRead, Body: ReadRequest{FD: fh.fd, Size: uint64(len(dest)), Offset: uint64(off)}.Encode()})
	if err != nil {
		return nil, syscall.EIO
	}
	if reply.Errno != 0 {
		return nil, errnoFromReply(reply)
	}
	return fuse.ReadResultData(reply.Payload), 0
}

func (fh *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	reply, err := fh.bridge.Call(Request{Op: OpWrite, Body: WriteRequest{FD: fh.fd, Offset: uint64(off), Data: data}.Encode()})
	if err != nil {
		return 0, syscall.EIO
	}
	if reply.Errno != 0 {
		return 0, errnoFromReply(reply)
	}
	if len(reply.Payload) < 4 {
		return 0, syscall.EIO
	}
	return uint32(reply.Payload[0]) | uint32(reply.Payload[1])<<8 | uint32(reply.Payload[2])<<16 | uint32(reply.Payload[3])<<24, 0
}

func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	reply, err := fh.bridge.Call(Request{Op: OpRelease, Body: ReleaseRequest{FD: fh.fd}.Encode()})
	if err != nil {
		return syscall.EIO
	}
	return errnoFromReply(reply)
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	reply, err := n.bridge.Call(Request{Op: OpOpen, Body: OpenRequest{Flags: flags, Path: "/" + n.rel}.Encode()})
	if err != nil {
		return nil, 0, syscall.EIO
	}
	if reply.Errno != 0 {
		return nil, 0, errnoFromReply(reply)
	}
	if len(reply.Payload) < 4 {
		return nil, 0, syscall.EIO
	}
	fd := uint32(reply.Payload[0]) | uint32(reply.Payload[1])<<8 | uint32(reply.Payload[2])<<16 | uint32(reply.Payload[3])<<24
	return &FileHandle{bridge: n.bridge, fd: fd}, 0, 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	childRel := path.Join(n.rel, name)
	reply, err := n.bridge.Call(Request{Op: OpCreate, Body: CreateRequest{Flags: flags, Mode: mode, Path: "/" + childRel}.Encode()})
	if err != nil {
		return nil, nil, 0, syscall.EIO
	}
	if reply.Errno != 0 {
		return nil, nil, 0, errnoFromReply(reply)
	}
	if len(reply.Payload) < 4 {
		return nil, nil, 0, syscall.EIO
	}
	fd := uint32(reply.Payload[0]) | uint32(reply.Payload[1])<<8 | uint32(reply.Payload[2])<<16 | uint32(reply.Payload[3])<<24
	child := &Node{bridge: n.bridge, rel: childRel}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFREG})
	return inode, &FileHandle{bridge: n.bridge, fd: fd}, 0, 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	reply, err := n.bridge.Call(Request{Op: OpUnLink, Body: PathRequest{Path: "/" + path.Join(n.rel, name)}.Encode()})
	if err != nil {
		return syscall.EIO
	}
	return errnoFromReply(reply)
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	reply, err := n.bridge.Call(Request{Op: OpRmDir, Body: PathRequest{Path: "/" + path.Join(n.rel, name)}.Encode()})
	if err != nil {
		return syscall.EIO
	}
	return errnoFromReply(reply)
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	np, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	reply, err := n.bridge.Call(Request{Op: OpRename, Body: RenameRequest{
		OldPath: "/" + path.Join(n.rel, name),
		NewPath: "/" + path.Join(np.rel, newName),
	}.Encode()})
	if err != nil {
		return syscall.EIO
	}
	return errnoFromReply(reply)
}

// Mount mounts a Node-rooted filesystem at mountPoint, forwarding every
// operation across bridge to the client-end ClientProxy.
func Mount(mountPoint string, bridge *Bridge) (*fuse.Server, error) {
	root := &Node{bridge: bridge}
	server, err := fs.Mount(mountPoint, root, &fs.Options{})
	if err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.ChannelError, "fuse mount", err)
	}
	return server, nil
}
