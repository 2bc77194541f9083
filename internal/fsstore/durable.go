package fsstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// filePerm is the mode of every file the store writes.
const filePerm = 0o644

// WriteDurable replaces the file at path with data. A concurrent or crashed
// reader sees either the previous content or the new content in full, never
// a truncated file: the data goes to a temp file in the same directory,
// which is synced and then renamed over path.
func WriteDurable(path string, data []byte) error {
	return writeDurableFrom(path, bytes.NewReader(data))
}

// writeDurableFrom is WriteDurable for streamed content.
func writeDurableFrom(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return ioErr("creating temp file", err)
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return ioErr(op, err)
	}

	w := bufio.NewWriter(tmp)
	if _, err := io.Copy(w, r); err != nil {
		return fail("writing temp file", err)
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fail("setting temp file mode", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ioErr("closing temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return ioErr("renaming temp file", err)
	}
	return nil
}

// marshalJSON encodes v with two-space indentation and without HTML
// escaping, so non-ASCII text stays readable in the data files.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSerialization, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeJSONFile durably writes v as JSON to path.
func writeJSONFile(path string, v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return WriteDurable(path, data)
}

// readJSONFile decodes the JSON file at path into v. The returned error
// wraps fs.ErrNotExist when the file is missing.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ioErr("reading "+filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", types.ErrSerialization, path, err)
	}
	return nil
}

// ioErr tags a filesystem failure with types.ErrIO, keeping the cause.
func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrIO, op, err)
}
