// Package snapshot 把抓到的列表页原始 HTML 落到目录下，便于排查选择器。
package snapshot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/doubantop/internal/infra/fsx"
)

// Store 把列表页写到 <root>/top250_start<offset>.html。同一 offset 重复写入会覆盖。
type Store struct {
	Root string
}

var ErrNoRoot = errors.New("snapshot: 未配置目录")

func New(root string) Store {
	root = strings.TrimSpace(root)
	if root == "" {
		return Store{}
	}
	return Store{Root: filepath.Clean(root)}
}

// PagePath 返回 offset 对应快照的路径。
func (s Store) PagePath(offset int) (string, error) {
	if s.Root == "" {
		return "", ErrNoRoot
	}
	if offset < 0 {
		return "", fmt.Errorf("offset 不能为负：%d", offset)
	}
	return filepath.Join(s.Root, pageName(offset)), nil
}

func (s Store) WritePage(offset int, html []byte) error {
	if _, err := s.PagePath(offset); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(s.Root, pageName(offset), html)
}

func pageName(offset int) string { return fmt.Sprintf("top250_start%d.html", offset) }
