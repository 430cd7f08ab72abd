package fuse

import (
	"context"
	"strconv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// BranchesDir lists one directory per branch.
type BranchesDir struct {
	fs.Inode
	view *View
}

var _ = (fs.NodeLookuper)((*BranchesDir)(nil))
var _ = (fs.NodeReaddirer)((*BranchesDir)(nil))
var _ = (fs.NodeGetattrer)((*BranchesDir)(nil))

func (d *BranchesDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("branches")
	return fs.OK
}

func (d *BranchesDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := d.view.BranchNames()
	entries := make([]fuse.DirEntry, len(names))
	for i, name := range names {
		entries[i] = fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFDIR,
			Ino:  stableIno("branches/" + name),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *BranchesDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if !d.view.HasBranch(name) {
		return nil, syscall.ENOENT
	}
	child := d.NewInode(ctx, &BranchDir{view: d.view, name: name}, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("branches/" + name),
	})
	return child, fs.OK
}

// BranchDir holds the "heads" file and the "log/" directory of one branch.
type BranchDir struct {
	fs.Inode
	view *View
	name string
}

var _ = (fs.NodeLookuper)((*BranchDir)(nil))
var _ = (fs.NodeReaddirer)((*BranchDir)(nil))
var _ = (fs.NodeGetattrer)((*BranchDir)(nil))

func (d *BranchDir) path() string { return "branches/" + d.name }

func (d *BranchDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno(d.path())
	return fs.OK
}

func (d *BranchDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return fs.NewListDirStream([]fuse.DirEntry{
		{Name: "heads", Mode: syscall.S_IFREG, Ino: stableIno(d.path() + "/heads")},
		{Name: "log", Mode: syscall.S_IFDIR, Ino: stableIno(d.path() + "/log")},
	}), fs.OK
}

func (d *BranchDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	switch name {
	case "heads":
		return newContentFile(ctx, &d.Inode, d.path()+"/heads", func(context.Context) ([]byte, error) {
			return d.view.Heads(d.name)
		}), fs.OK
	case "log":
		child := d.NewInode(ctx, &LogDir{view: d.view, branch: d.name}, fs.StableAttr{
			Mode: syscall.S_IFDIR,
			Ino:  stableIno(d.path() + "/log"),
		})
		return child, fs.OK
	}
	return nil, syscall.ENOENT
}

// LogDir exposes the history of a branch as files.
// Layout: log/0 (newest commit JSON), log/1, ...
type LogDir struct {
	fs.Inode
	view   *View
	branch string
}

var _ = (fs.NodeLookuper)((*LogDir)(nil))
var _ = (fs.NodeReaddirer)((*LogDir)(nil))
var _ = (fs.NodeGetattrer)((*LogDir)(nil))

func (d *LogDir) path() string { return "branches/" + d.branch + "/log" }

func (d *LogDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno(d.path())
	return fs.OK
}

func (d *LogDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	commits, err := d.view.Log(ctx, d.branch)
	if err != nil {
		return nil, errno(err)
	}
	entries := make([]fuse.DirEntry, len(commits))
	for i := range commits {
		name := strconv.Itoa(i)
		entries[i] = fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
			Ino:  stableIno(d.path() + "/" + name),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *LogDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	idx, err := strconv.Atoi(name)
	if err != nil || idx < 0 {
		return nil, syscall.ENOENT
	}
	if _, err := d.view.LogEntryJSON(ctx, d.branch, idx); err != nil {
		return nil, errno(err)
	}
	return newContentFile(ctx, &d.Inode, d.path()+"/"+name, func(ctx context.Context) ([]byte, error) {
		return d.view.LogEntryJSON(ctx, d.branch, idx)
	}), fs.OK
}
