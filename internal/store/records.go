package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/imgshare/internal/model"
)

const (
	// recordExt is the record file extension.
	recordExt = ".json"

	// recordNameLen is the number of hex digits of the target hash used as
	// the file name.
	recordNameLen = 10

	// legacyTimestamp is the timestamp layout of older record files.
	legacyTimestamp = "2006-01-02T15:04:05"
)

// RecordName returns the file name for target: the first 10 hex digits of
// its SHA-256 plus ".json".
func RecordName(target string) string {
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:])[:recordNameLen] + recordExt
}

// RecordPath returns where the record of target lives under root.
func RecordPath(root, target string) (string, error) {
	label, err := model.MainLabel(target)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, label, RecordName(target)), nil
}

// Exists reports whether a record file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// wireRecord is the on-disk shape, current and legacy keys side by side.
type wireRecord struct {
	SourceID          string         `json:"source_id"`
	URL               string         `json:"url"`
	ByteSize          json.Number    `json:"byte_size"`
	ImageSize         json.Number    `json:"image_size"`
	ContentHashPrefix string         `json:"content_hash_prefix"`
	SHA256First       string         `json:"sha256_first_10240_bytes"`
	BoundarySample    string         `json:"boundary_sample"`
	SampleStart       string         `json:"random_128_bytes_sample_start"`
	ETag              string         `json:"etag"`
	CapturedAt        string         `json:"captured_at"`
	Timestamp         string         `json:"timestamp"`
	Properties        map[string]any `json:"properties"`
	EXIF              map[string]any `json:"exif"`
}

func (w *wireRecord) fingerprint() (*model.Fingerprint, bool) {
	id := firstNonEmpty(w.SourceID, w.URL)
	if id == "" {
		return nil, false
	}

	fp := &model.Fingerprint{
		SourceID:          id,
		ByteSize:          parseSize(firstNonEmpty(w.ByteSize.String(), w.ImageSize.String())),
		ContentHashPrefix: strings.ToLower(firstNonEmpty(w.ContentHashPrefix, w.SHA256First)),
		BoundarySample:    strings.ToLower(firstNonEmpty(w.BoundarySample, w.SampleStart)),
		ETag:              model.NormalizeETag(w.ETag),
		CapturedAt:        parseTimestamp(firstNonEmpty(w.CapturedAt, w.Timestamp)),
		Properties:        stringify(w.Properties),
	}
	if len(fp.Properties) == 0 {
		fp.Properties = stringify(w.EXIF)
	}
	if fp.SampleBytes() == nil {
		fp.BoundarySample = ""
	}
	return fp, true
}

// ReadRecordFile reads one record file. Records without a source identifier
// are dropped. Unreadable or malformed files return an error wrapping
// model.ErrPersistence.
func ReadRecordFile(path string) ([]*model.Fingerprint, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a configured corpus root
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}

	wires, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, path, err)
	}

	fps := make([]*model.Fingerprint, 0, len(wires))
	for i := range wires {
		if fp, ok := wires[i].fingerprint(); ok {
			fps = append(fps, fp)
		}
	}
	return fps, nil
}

// decodeRecords accepts an array of records or a single record.
func decodeRecords(data []byte) ([]wireRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty file")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var wires []wireRecord
		if err := dec.Decode(&wires); err != nil {
			return nil, err
		}
		return wires, nil
	}

	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	return []wireRecord{w}, nil
}

// WriteRecordFile writes fps to path as an indented JSON array. The file is
// written to a temporary name first and renamed into place, so readers never
// see a partial record.
func WriteRecordFile(path string, fps []*model.Fingerprint) error {
	if fps == nil {
		fps = []*model.Fingerprint{}
	}
	data, err := json.MarshalIndent(fps, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", model.ErrPersistence, path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	return nil
}

// ScanRecordFiles returns every record file below root in lexical order.
// A root that does not exist yields no files and no error.
func ScanRecordFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), recordExt) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %w", model.ErrPersistence, root, err)
	}
	sort.Strings(files)
	return files, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseSize(s string) int64 {
	if s == "" {
		return 0
	}
	n := json.Number(s)
	if i, err := n.Int64(); err == nil && i > 0 {
		return i
	}
	if f, err := n.Float64(); err == nil && f > 0 {
		return int64(f)
	}
	return 0
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, legacyTimestamp, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// stringify flattens arbitrary JSON values into strings. Nested values are
// kept as compact JSON.
func stringify(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = fmt.Sprint(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
