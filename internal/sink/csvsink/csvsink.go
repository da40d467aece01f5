// Package csvsink 把记录写成带 BOM 的 UTF-8 CSV 文件。
package csvsink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/John-Robertt/doubantop/internal/domain"
	"github.com/John-Robertt/doubantop/internal/infra/fsx"
	"github.com/John-Robertt/doubantop/internal/sink"
)

// DefaultPath 是未配置时的输出文件名（相对工作目录）。
const DefaultPath = "douban_movies.csv"

// Header 是 CSV 首行。
var Header = []string{"title", "rating", "review_count", "tagline"}

var bom = []byte{0xEF, 0xBB, 0xBF}

// IOError 表示 CSV 文件创建/写入/提交失败。
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("写入 CSV 失败：%s：%v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) Code() string  { return domain.ErrCodeCSVIOFailed }

// Sink 覆盖写入 Path；失败时旧文件保持原样。
type Sink struct {
	Path string
}

func New(path string) *Sink {
	if path == "" {
		path = DefaultPath
	}
	return &Sink{Path: path}
}

func (s *Sink) Name() string { return "csv" }

func (s *Sink) Persist(_ context.Context, records []domain.MovieRecord) (int, error) {
	if len(records) == 0 {
		return 0, sink.ErrNothingToWrite
	}
	path := s.Path
	if path == "" {
		path = DefaultPath
	}

	f, err := fsx.Create(path)
	if err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := bw.Write(bom); err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	w := csv.NewWriter(bw)
	w.UseCRLF = true
	if err := w.Write(Header); err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	for _, r := range records {
		if err := w.Write([]string{r.Title, r.Rating, r.ReviewCount, r.Tagline}); err != nil {
			return 0, &IOError{Path: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	if err := f.Commit(); err != nil {
		return 0, &IOError{Path: path, Err: err}
	}
	return len(records), nil
}
