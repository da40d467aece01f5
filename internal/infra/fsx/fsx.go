package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// File 是“写临时文件，Commit 时 rename 到目标路径”的句柄。
//
// 用法：
//
//	f, err := fsx.Create(path)
//	if err != nil { ... }
//	defer f.Close() // 未 Commit 时删除临时文件
//	... 写入 f ...
//	return f.Commit()
//
// 临时文件与目标文件同目录，保证 rename 的原子性；
// 任何退出路径下句柄都会被释放，失败时目标文件保持原样。
type File struct {
	f    *os.File
	dst  string
	dir  string
	perm os.FileMode
	done bool
}

// Create 为 path 打开一个临时写句柄。若 path 已存在且不是普通文件，返回 PathTypeConflictError。
func Create(path string) (*File, error) {
	dst := filepath.Clean(path)
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return nil, &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return nil, &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// 前缀带 '.'，避免在目录视图里看到半成品。
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{f: tmp, dst: dst, dir: dir, perm: 0o644}, nil
}

func (f *File) Write(p []byte) (int, error) {
	if f.done {
		return 0, os.ErrClosed
	}
	return f.f.Write(p)
}

// Commit 刷盘并把临时文件 rename 为目标文件。只能调用一次。
func (f *File) Commit() error {
	if f.done {
		return os.ErrClosed
	}
	f.done = true
	tmpName := f.f.Name()

	fail := func(err error) error {
		_ = f.f.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := f.f.Chmod(f.perm); err != nil {
		return fail(err)
	}
	if err := f.f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := renameFunc(tmpName, f.dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(f.dir)
	return nil
}

// Close 放弃未提交的写入；Commit 之后调用是 no-op。
func (f *File) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	err := f.f.Close()
	_ = os.Remove(f.f.Name())
	return err
}

// WriteFileAtomicReplace 在 dir 下原子写入 name，若目标已存在则覆盖。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	f, err := Create(filepath.Join(filepath.Clean(dir), name))
	if err != nil {
		return err
	}
	defer f.Close()

	for b := data; len(b) > 0; {
		n, err := f.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return f.Commit()
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
