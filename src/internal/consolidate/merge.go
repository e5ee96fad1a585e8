package consolidate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sortbook/src/internal/normalize"
)

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	return cw
}

// renameWithCaseHandling renames src to dst, routing through a temporary
// name first when the rename is a case-only change (some filesystems treat
// "Doe, Jane" and "doe, jane" as the same path and reject a direct rename).
func renameWithCaseHandling(src, dst string) error {
	if samePath(src, dst) {
		return nil
	}
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if strings.EqualFold(src, dst) {
		temp := dst + ".__tmp_case__"
		index := 1
		for {
			if _, err := os.Stat(temp); os.IsNotExist(err) {
				break
			}
			temp = fmt.Sprintf("%s.__tmp_case__%d", dst, index)
			index++
		}
		if err := os.Rename(src, temp); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", src, temp, err)
		}
		if err := os.Rename(temp, dst); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", temp, dst, err)
		}
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// mergeDirectories walks every entry under src, sanitizes its path
// components, and moves it under dst via moveOrKeepLarger, removing src once
// fully drained. A no-op under dry-run.
func mergeDirectories(src, dst string, dryRun bool) error {
	if samePath(src, dst) {
		return nil
	}
	if dryRun {
		fmt.Printf("[DRY-RUN] merge %s -> %s\n", src, dst)
		return nil
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}

	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, sanitizeRelativePath(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return moveOrKeepLarger(path, target)
	})
	if err != nil {
		return fmt.Errorf("merge %s into %s: %w", src, dst, err)
	}
	return os.RemoveAll(src)
}

func sanitizeRelativePath(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, p := range parts {
		parts[i] = normalize.SanitizeComponent(p)
	}
	return filepath.Join(parts...)
}

// moveOrKeepLarger moves src to dst when dst is absent; when both exist, it
// keeps whichever file is larger, crash-tolerantly: the replaced file is
// parked under a ".old_to_delete" name until the move succeeds.
func moveOrKeepLarger(src, dst string) error {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return moveFile(src, dst)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if srcInfo.Size() > dstInfo.Size() {
		tmp := dst + ".old_to_delete"
		_ = os.Remove(tmp)
		_ = os.Rename(dst, tmp)
		if err := moveFile(src, dst); err != nil {
			return err
		}
		_ = os.Remove(tmp)
		return nil
	}
	return os.Remove(src)
}

// moveFile renames src to dst, falling back to copy-then-delete when the
// rename fails (e.g. a cross-device move).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if os.IsNotExist(err) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := copyBytes(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	_ = os.Remove(src)
	return nil
}

func copyBytes(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
