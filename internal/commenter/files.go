package commenter

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

const backupSuffix = ".backup"

// FileHandler handles file I/O operations
type FileHandler struct {
	// Backup keeps a <path>.backup copy of every file before it is overwritten
	Backup bool
}

// ReadFile reads a file and returns its content as a string
func (fh *FileHandler) ReadFile(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", failure.IO("read", filePath, err)
	}
	return string(content), nil
}

// WriteFile overwrites an existing file, keeping its permission bits
func (fh *FileHandler) WriteFile(filePath string, content string) error {
	mode := fs.FileMode(0644)
	if info, err := os.Stat(filePath); err == nil {
		mode = info.Mode().Perm()
	}

	if fh.Backup {
		if err := fh.backup(filePath, mode); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filePath, []byte(content), mode); err != nil {
		return failure.IO("write", filePath, err)
	}
	return nil
}

// BackupPath returns where the backup of filePath is kept
func BackupPath(filePath string) string {
	return filePath + backupSuffix
}

func (fh *FileHandler) backup(filePath string, mode fs.FileMode) error {
	original, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return failure.IO("backup", filePath, err)
	}
	if err := os.WriteFile(BackupPath(filePath), original, mode); err != nil {
		return failure.IO("backup", filePath, fmt.Errorf("failed to write %s: %w", BackupPath(filePath), err))
	}
	return nil
}
