package fuse

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// ClientProxy is the client end of the FUSE bridge: it
// receives op Requests over a channelmux.Channel and executes the
// corresponding POSIX operation against a real root directory, returning
// {opCode, errno, payload} replies. Operations dispatch to direct os.*
// calls against RootPath since this module needs no libfuse binding on the
// client side -- only the server side mounts a real FUSE filesystem.
type ClientProxy struct {
	RootPath string
	UID, GID uint32

	mu     sync.Mutex
	fds    map[uint32]*os.File
	nextFD uint32

	pr *io.PipeReader
	pw *io.PipeWriter
}

// NewClientProxy builds a proxy rooted at root. Paths in every request are
// joined under root and must not escape it.
func NewClientProxy(root string) *ClientProxy {
	pr, pw := io.Pipe()
	return &ClientProxy{
		RootPath: root,
		UID:      uint32(os.Getuid()),
		GID:      uint32(os.Getgid()),
		fds:      make(map[uint32]*os.File),
		nextFD:   1,
		pr:       pr,
		pw:       pw,
	}
}

// Read drains reply bytes the proxy has produced, for the session's egress
// pump to forward as channel frames.
func (c *ClientProxy) Read(p []byte) (int, error) { return c.pr.Read(p) }

// Close releases every open file descriptor and closes the reply pipe.
func (c *ClientProxy) Close() error {
	c.mu.Lock()
	for fd, f := range c.fds {
		_ = f.Close()
		delete(c.fds, fd)
	}
	c.mu.Unlock()
	return c.pw.Close()
}

// Write decodes one Request and queues its Reply for Read.
func (c *ClientProxy) Write(p []byte) (int, error) {
	req, err := DecodeRequest(p)
	if err != nil {
		return 0, err
	}
	reply := c.handle(req)
	if _, err := c.pw.Write(reply.Encode()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *ClientProxy) handle(req Request) Reply {
	switch req.Op {
	case OpInit:
		return c.doInit(req)
	case OpGetAttr:
		return c.doGetAttr(req)
	case OpReadDir:
		return c.doReadDir(req)
	case OpOpen:
		return c.doOpen(req)
	case OpRead:
		return c.doRead(req)
	case OpRelease:
		return c.doRelease(req)
	case OpAccess:
		return c.doAccess(req)
	case OpRmDir:
		return c.doRmDir(req)
	case OpUnLink:
		return c.doUnLink(req)
	case OpRename:
		return c.doRename(req)
	case OpTruncate:
		return c.doTruncate(req)
	case OpWrite:
		return c.doWrite(req)
	case OpCreate:
		return c.doCreate(req)
	case OpLookup:
		return c.doGetAttr(req) // Lookup and GetAttr share the path->Stat shape
	default:
		return Reply{Op: req.Op, Errno: uint32(syscall.ENOSYS)}
	}
}

func (c *ClientProxy) resolve(path string) (string, bool) {
	clean := filepath.Join(c.RootPath, filepath.Clean("/"+path))
	if !strings.HasPrefix(clean, filepath.Clean(c.RootPath)) {
		return "", false
	}
	return clean, true
}

func errnoOf(err error) uint32 {
	if err == nil {
		return 0
	}
	if errno, ok := err.(syscall.Errno); ok {
		return uint32(errno)
	}
	if pe, ok := err.(*os.PathError); ok {
		return errnoOf(pe.Err)
	}
	if os.IsNotExist(err) {
		return uint32(syscall.ENOENT)
	}
	if os.IsPermission(err) {
		return uint32(syscall.EACCES)
	}
	return uint32(syscall.EIO)
}

func statOf(fi os.FileInfo) Stat {
	mode := uint32(fi.Mode().Perm())
	if fi.IsDir() {
		mode |= syscall.S_IFDIR
	} else {
		mode |= syscall.S_IFREG
	}
	var inode uint64
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		inode = sys.Ino
	}
	return Stat{
		Inode: inode,
		Mode:  mode,
		Size:  uint64(fi.Size()),
		Mtime: fi.ModTime().Unix(),
		Nlink: 1,
	}
}

func (c *ClientProxy) doInit(req Request) Reply {
	if _, err := DecodeInitRequest(req.Body); err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	fi, err := os.Stat(c.RootPath)
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, ProtocolVersion)
	payload = append(payload, statOf(fi).Encode()...)
	return Reply{Op: req.Op, Payload: payload}
}

func (c *ClientProxy) doGetAttr(req Request) Reply {
	pr, err := DecodePathRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(pr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	fi, err := os.Lstat(full)
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op, Payload: statOf(fi).Encode()}
}

func (c *ClientProxy) doReadDir(req Request) Reply {
	pr, err := DecodePathRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(pr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	var payload []byte
	for _, e := range entries {
		name := e.Name()
		nameLen := make([]byte, 2)
		binary.LittleEndian.PutUint16(nameLen, uint16(len(name)))
		payload = append(payload, nameLen...)
		payload = append(payload, name...)
		if info, err := e.Info(); err == nil {
			payload = append(payload, statOf(info).Encode()...)
		} else {
			payload = append(payload, Stat{}.Encode()...)
		}
	}
	return Reply{Op: req.Op, Payload: payload}
}

func (c *ClientProxy) doOpen(req Request) Reply {
	or, err := DecodeOpenRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(or.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	f, err := os.OpenFile(full, int(or.Flags), 0)
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	c.mu.Lock()
	fd := c.nextFD
	c.nextFD++
	c.fds[fd] = f
	c.mu.Unlock()
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, fd)
	return Reply{Op: req.Op, Payload: payload}
}

func (c *ClientProxy) doRead(req Request) Reply {
	rr, err := DecodeReadRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	c.mu.Lock()
	f, ok := c.fds[rr.FD]
	c.mu.Unlock()
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EBADF)}
	}
	buf := make([]byte, rr.Size)
	n, err := f.ReadAt(buf, int64(rr.Offset))
	if err != nil && err != io.EOF {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op, Payload: buf[:n]}
}

func (c *ClientProxy) doRelease(req Request) Reply {
	rr, err := DecodeReleaseRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	c.mu.Lock()
	f, ok := c.fds[rr.FD]
	delete(c.fds, rr.FD)
	c.mu.Unlock()
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EBADF)}
	}
	if err := f.Close(); err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op}
}

func (c *ClientProxy) doAccess(req Request) Reply {
	pr, err := DecodePathRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(pr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	if err := syscall.Access(full, pr.Mode); err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op}
}

func (c *ClientProxy) doRmDir(req Request) Reply {
	pr, err := DecodePathRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(pr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	if err := os.Remove(full); err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op}
}

func (c *ClientProxy) doUnLink(req Request) Reply {
	return c.doRmDir(req) // os.Remove handles both files and empty dirs identically here
}

func (c *ClientProxy) doRename(req Request) Reply {
	rr, err := DecodeRenameRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	oldFull, ok := c.resolve(rr.OldPath)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	newFull, ok := c.resolve(rr.NewPath)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op}
}

func (c *ClientProxy) doTruncate(req Request) Reply {
	tr, err := DecodeTruncateRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(tr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	if err := os.Truncate(full, int64(tr.Size)); err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	return Reply{Op: req.Op}
}

func (c *ClientProxy) doWrite(req Request) Reply {
	wr, err := DecodeWriteRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	c.mu.Lock()
	f, ok := c.fds[wr.FD]
	c.mu.Unlock()
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EBADF)}
	}
	n, err := f.WriteAt(wr.Data, int64(wr.Offset))
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(n))
	return Reply{Op: req.Op, Payload: payload}
}

func (c *ClientProxy) doCreate(req Request) Reply {
	cr, err := DecodeCreateRequest(req.Body)
	if err != nil {
		return Reply{Op: req.Op, Errno: uint32(syscall.EINVAL)}
	}
	full, ok := c.resolve(cr.Path)
	if !ok {
		return Reply{Op: req.Op, Errno: uint32(syscall.EACCES)}
	}
	f, err := os.OpenFile(full, int(cr.Flags)|os.O_CREATE, os.FileMode(cr.Mode))
	if err != nil {
		return Reply{Op: req.Op, Errno: errnoOf(err)}
	}
	c.mu.Lock()
	fd := c.nextFD
	c.nextFD++
	c.fds[fd] = f
	c.mu.Unlock()
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, fd)
	return Reply{Op: req.Op, Payload: payload}
}
