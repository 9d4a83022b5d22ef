package hasher

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/pkg/logger"
)

// CalculateHash 计算文件内容的 xxHash 值
func CalculateHash(fs afero.Fs, filePath string) (uint64, error) {
	logger.Get().Trace().Msgf("计算文件哈希: %s", filePath)

	file, err := fs.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, file); err != nil {
		return 0, err
	}

	return hash.Sum64(), nil
}

// CopyVerified 将 src 复制到 dst 并校验大小与哈希，校验失败时删除 dst
func CopyVerified(fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	srcHash := xxhash.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHash))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fs.Remove(dst)
		return 0, err
	}

	if written != info.Size() {
		_ = fs.Remove(dst)
		return 0, fmt.Errorf("复制大小不一致: 源文件 %d 字节，已复制 %d 字节", info.Size(), written)
	}

	dstHash, err := CalculateHash(fs, dst)
	if err != nil {
		_ = fs.Remove(dst)
		return 0, err
	}
	if dstHash != srcHash.Sum64() {
		_ = fs.Remove(dst)
		return 0, fmt.Errorf("复制哈希不一致: 文件在复制过程中损坏")
	}

	return written, nil
}
