package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// RootNode is the mountpoint directory. Contains "HEAD", "branches/" and "objects/".
type RootNode struct {
	fs.Inode
	view *View
}

var _ = (fs.NodeOnAdder)((*RootNode)(nil))
var _ = (fs.NodeGetattrer)((*RootNode)(nil))

func (r *RootNode) OnAdd(ctx context.Context) {
	head := &contentFile{
		path:    "HEAD",
		content: func(context.Context) ([]byte, error) { return r.view.Head() },
	}
	r.AddChild("HEAD", r.NewPersistentInode(ctx, head, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  stableIno("HEAD"),
	}), true)

	branches := &BranchesDir{view: r.view}
	r.AddChild("branches", r.NewPersistentInode(ctx, branches, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("branches"),
	}), true)

	objects := &ObjectsDir{view: r.view}
	r.AddChild("objects", r.NewPersistentInode(ctx, objects, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("objects"),
	}), true)
}

func (r *RootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("/")
	return fs.OK
}

// ObjectsDir resolves content keys to the raw value of their element. It
// cannot be listed: the store has no enumeration.
type ObjectsDir struct {
	fs.Inode
	view *View
}

var _ = (fs.NodeLookuper)((*ObjectsDir)(nil))
var _ = (fs.NodeGetattrer)((*ObjectsDir)(nil))

func (d *ObjectsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("objects")
	return fs.OK
}

func (d *ObjectsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if _, err := d.view.Object(ctx, name); err != nil {
		return nil, errno(err)
	}
	return newContentFile(ctx, &d.Inode, "objects/"+name, func(ctx context.Context) ([]byte, error) {
		return d.view.Object(ctx, name)
	}), fs.OK
}
