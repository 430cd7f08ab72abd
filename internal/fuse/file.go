package fuse

import (
	"context"
	"hash/fnv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/systemshift/memex-vcs/internal/errors"
)

// stableIno returns a stable inode number for a given path string.
func stableIno(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

// errno maps an error kind to the errno reported to the kernel.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return fs.OK
	case errors.Is(err, errors.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, errors.ErrInvalidArgument):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// contentFile is a read-only file whose bytes are produced on each access.
type contentFile struct {
	fs.Inode
	path    string
	content func(ctx context.Context) ([]byte, error)
}

var _ = (fs.NodeGetattrer)((*contentFile)(nil))
var _ = (fs.NodeReader)((*contentFile)(nil))
var _ = (fs.NodeOpener)((*contentFile)(nil))

func newContentFile(ctx context.Context, parent *fs.Inode, path string, content func(context.Context) ([]byte, error)) *fs.Inode {
	f := &contentFile{path: path, content: content}
	return parent.NewInode(ctx, f, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  stableIno(path),
	})
}

func (f *contentFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, err := f.content(ctx)
	if err != nil {
		return errno(err)
	}
	out.Mode = 0444
	out.Size = uint64(len(data))
	out.Ino = stableIno(f.path)
	return fs.OK
}

func (f *contentFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (f *contentFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.content(ctx)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(window(data, dest, off)), fs.OK
}

// window is the part of data a read of len(dest) bytes at off returns.
func window(data, dest []byte, off int64) []byte {
	if off >= int64(len(data)) {
		return nil
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[off:end]
}
