package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/classifier"
	"github.com/moyu-x/file-sorter/pkg/logger"
)

// FileWalker 递归遍历目录
// 每个目录内按文件名字典序访问；符号链接不会被跟随，链接本身作为普通条目返回
type FileWalker struct {
	Fs            afero.Fs
	IncludeHidden bool
	// Exclude 中的目录及其子树不会被访问
	Exclude []string
	// ExcludeFiles 中的文件不会返回
	ExcludeFiles []string
}

func NewFileWalker(fs afero.Fs) *FileWalker {
	return &FileWalker{
		Fs:            fs,
		IncludeHidden: true,
	}
}

// Walk 对 root 下的每个非目录条目调用 callback
// root 不存在、不是目录或无法读取时返回错误；子目录读取失败时记录警告并跳过
func (w *FileWalker) Walk(root string, callback func(path string, info os.FileInfo) error) error {
	info, err := w.Fs.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s 不是目录", root)
	}

	root = filepath.Clean(root)
	return afero.Walk(w.Fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Get().Warn().Err(err).Str("path", path).Msg("访问路径出错，已跳过")
			return nil
		}

		if path != root && w.skipped(path, info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		return callback(path, info)
	})
}

func (w *FileWalker) skipped(path string, info os.FileInfo) bool {
	if !w.IncludeHidden && strings.HasPrefix(info.Name(), ".") {
		return true
	}
	if !info.IsDir() {
		for _, file := range w.ExcludeFiles {
			if filepath.Clean(file) == path {
				return true
			}
		}
		return false
	}
	for _, dir := range w.Exclude {
		if filepath.Clean(dir) == path {
			return true
		}
	}
	return false
}

// Collect 遍历 root 并返回全部待处理文件的快照
func (w *FileWalker) Collect(root string) ([]internal.FileTask, error) {
	var tasks []internal.FileTask

	err := w.Walk(root, func(path string, info os.FileInfo) error {
		tasks = append(tasks, internal.FileTask{
			Path:    path,
			Name:    info.Name(),
			Ext:     classifier.Ext(info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info().Msgf("文件统计完成，共找到 %d 个文件", len(tasks))
	return tasks, nil
}
