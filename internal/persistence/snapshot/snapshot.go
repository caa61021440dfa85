// Package snapshot dumps every record of an entity store to one
// zstd-compressed JSONL file and loads it back. The first line is a Header;
// each following line is one Record.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"chatwars.ai/internal/persistence/store"
)

const Version = 1

type Header struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	Records       int       `json:"records"`
	CatalogDigest string    `json:"catalog_digest,omitempty"`
}

type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Export writes every record of st to path. The file is written next to
// path and renamed into place once complete.
func Export(ctx context.Context, st store.Store, path string, h Header) (Header, error) {
	keys, err := st.ListKeys(ctx, "")
	if err != nil {
		return Header{}, err
	}
	recs := make([]Record, 0, len(keys))
	for _, k := range keys {
		v, ok, err := st.Get(ctx, k)
		if err != nil {
			return Header{}, err
		}
		if !ok {
			// Deleted since ListKeys.
			continue
		}
		recs = append(recs, Record{Key: k, Value: v})
	}
	h.Version = Version
	h.Records = len(recs)
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Header{}, err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Header{}, err
	}
	err = write(f, h, recs)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return Header{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return Header{}, err
	}
	return h, nil
}

func write(f *os.File, h Header, recs []Record) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := writeLine(bw, h); err != nil {
		enc.Close()
		return err
	}
	for _, r := range recs {
		if err := writeLine(bw, r); err != nil {
			enc.Close()
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeLine(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := bw.Write(b); err != nil {
		return err
	}
	return bw.WriteByte('\n')
}

// ReadHeader returns the header of a snapshot without reading its records.
func ReadHeader(path string) (Header, error) {
	var h Header
	err := read(path, func(hh Header) error {
		h = hh
		return nil
	}, nil)
	return h, err
}

// Import writes every record of the snapshot at path into st in one batch,
// overwriting records with the same key. Records already in st that the
// snapshot does not mention are left alone.
func Import(ctx context.Context, path string, st store.Store) (Header, error) {
	var h Header
	var ops []store.Op
	err := read(path, func(hh Header) error {
		if hh.Version != Version {
			return fmt.Errorf("snapshot: unsupported version %d", hh.Version)
		}
		h = hh
		ops = make([]store.Op, 0, min(max(hh.Records, 0), 1<<16))
		return nil
	}, func(r Record) error {
		if r.Key == "" || len(r.Value) == 0 {
			return fmt.Errorf("snapshot: malformed record %d", len(ops)+1)
		}
		ops = append(ops, store.Op{Key: r.Key, Value: []byte(r.Value)})
		return nil
	})
	if err != nil {
		return Header{}, err
	}
	if len(ops) != h.Records {
		return Header{}, fmt.Errorf("snapshot: header lists %d records, file has %d", h.Records, len(ops))
	}
	if err := ctx.Err(); err != nil {
		return Header{}, err
	}
	if len(ops) > 0 {
		if err := st.Apply(ctx, ops); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func read(path string, onHeader func(Header) error, onRecord func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return errors.New("snapshot: empty file")
	}
	var h Header
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil {
		return fmt.Errorf("snapshot: header: %w", err)
	}
	if err := onHeader(h); err != nil {
		return err
	}
	if onRecord == nil {
		return nil
	}
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("snapshot: record: %w", err)
		}
		if err := onRecord(r); err != nil {
			return err
		}
	}
	return sc.Err()
}
