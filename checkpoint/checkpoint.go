// Package checkpoint persists finished render chunks in a Badger database, so
// that a crashed or interrupted render loses at most the chunks in flight.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"row-major/glint/sampleimage"

	"github.com/dgraph-io/badger"
	"github.com/golang/glog"
	"golang.org/x/xerrors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Key prefixes that denote different tables in the key-value store.
const (
	KeyTypeMeta  uint32 = 0
	KeyTypeChunk uint32 = 1
)

var (
	ErrMetaMismatch = xerrors.New("checkpoint belongs to a different render")
	ErrNoMeta       = xerrors.New("checkpoint directory holds no render")
)

func MetaKey() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeMeta)
	return key
}

func ChunkKey(rowSrc int) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeChunk)
	binary.BigEndian.PutUint64(key[4:12], uint64(rowSrc))
	return key
}

func ChunkKeyPrefixAllChunks() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key[0:4], KeyTypeChunk)
	return key
}

// Meta identifies a render.  Chunks are only reused by a render with the same
// Meta.
type Meta struct {
	Rows             int
	Cols             int
	TargetSubsamples int
	ChunkRows        int
}

func (m Meta) marshal() ([]byte, error) {
	st, err := structpb.NewStruct(map[string]interface{}{
		"rows":              float64(m.Rows),
		"cols":              float64(m.Cols),
		"target_subsamples": float64(m.TargetSubsamples),
		"chunk_rows":        float64(m.ChunkRows),
	})
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

func unmarshalMeta(data []byte) (Meta, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return Meta{}, err
	}
	f := st.GetFields()
	return Meta{
		Rows:             int(f["rows"].GetNumberValue()),
		Cols:             int(f["cols"].GetNumberValue()),
		TargetSubsamples: int(f["target_subsamples"].GetNumberValue()),
		ChunkRows:        int(f["chunk_rows"].GetNumberValue()),
	}, nil
}

// glogLogger routes Badger's logging through glog.
type glogLogger struct{}

func (glogLogger) Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func (glogLogger) Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func (glogLogger) Infof(format string, args ...interface{})    { glog.V(1).Infof(format, args...) }
func (glogLogger) Debugf(format string, args ...interface{})   { glog.V(2).Infof(format, args...) }

type Storage struct {
	DB *badger.DB

	meta Meta
}

// Open opens (creating if needed) the checkpoint database in dataDir.  If the
// database was written by a render with different Meta, Open fails with
// ErrMetaMismatch.
func Open(dataDir string, meta Meta) (*Storage, error) {
	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(glogLogger{}))
	if err != nil {
		return nil, xerrors.Errorf("while opening badger kv dir: %w", err)
	}

	want, err := meta.marshal()
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("while marshaling meta: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(MetaKey())
		if err == badger.ErrKeyNotFound {
			return txn.Set(MetaKey(), want)
		} else if err != nil {
			return xerrors.Errorf("while reading meta: %w", err)
		}

		got, err := item.ValueCopy(nil)
		if err != nil {
			return xerrors.Errorf("while copying meta: %w", err)
		}
		if bytes.Equal(got, want) {
			return nil
		}

		stored, err := unmarshalMeta(got)
		if err != nil {
			return xerrors.Errorf("while unmarshaling meta: %w", err)
		}
		return xerrors.Errorf("stored meta %+v, want %+v: %w", stored, meta, ErrMetaMismatch)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{DB: db, meta: meta}, nil
}

// OpenExisting opens a checkpoint database read-only, taking its Meta from the
// database itself.
func OpenExisting(dataDir string) (*Storage, error) {
	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(glogLogger{}).WithReadOnly(true))
	if err != nil {
		return nil, xerrors.Errorf("while opening badger kv dir: %w", err)
	}

	var meta Meta
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MetaKey())
		if err == badger.ErrKeyNotFound {
			return ErrNoMeta
		} else if err != nil {
			return xerrors.Errorf("while reading meta: %w", err)
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return xerrors.Errorf("while copying meta: %w", err)
		}
		meta, err = unmarshalMeta(val)
		if err != nil {
			return xerrors.Errorf("while unmarshaling meta: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{DB: db, meta: meta}, nil
}

func (s *Storage) Meta() Meta {
	return s.meta
}

func (s *Storage) Close() error {
	if err := s.DB.Close(); err != nil {
		return xerrors.Errorf("while closing database: %w", err)
	}
	return nil
}

// Load returns the chunk stored for rows [rowSrc, rowLim).
func (s *Storage) Load(rowSrc, rowLim int) (*sampleimage.SampleImage, bool, error) {
	var chunk *sampleimage.SampleImage
	err := s.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ChunkKey(rowSrc))
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return xerrors.Errorf("while reading chunk: %w", err)
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return xerrors.Errorf("while copying chunk: %w", err)
		}

		chunk, err = sampleimage.ReadSampleImage(bytes.NewReader(val))
		if err != nil {
			return xerrors.Errorf("while decoding chunk at row %d: %w", rowSrc, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if chunk == nil {
		return nil, false, nil
	}

	if chunk.RowSize != rowLim-rowSrc || chunk.ColSize != s.meta.Cols {
		return nil, false, xerrors.Errorf("chunk at row %d is %dx%d, want %dx%d", rowSrc, chunk.RowSize, chunk.ColSize, rowLim-rowSrc, s.meta.Cols)
	}

	glog.V(2).Infof("Recovered checkpoint for rows [%d, %d)", rowSrc, rowLim)
	return chunk, true, nil
}

func (s *Storage) Store(rowSrc int, chunk *sampleimage.SampleImage) error {
	buf := &bytes.Buffer{}
	if err := sampleimage.WriteSampleImage(chunk, buf); err != nil {
		return xerrors.Errorf("while encoding chunk: %w", err)
	}

	err := s.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(ChunkKey(rowSrc), buf.Bytes())
	})
	if err != nil {
		return xerrors.Errorf("while writing chunk at row %d: %w", rowSrc, err)
	}
	return nil
}

// Chunks lists the first row of every stored chunk, in order.
func (s *Storage) Chunks() ([]int, error) {
	rows := []int{}
	err := s.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := ChunkKeyPrefixAllChunks()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) != 12 {
				return fmt.Errorf("chunk key has wrong length; got %d, want 12", len(key))
			}
			rows = append(rows, int(binary.BigEndian.Uint64(key[4:12])))
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("while listing chunks: %w", err)
	}
	return rows, nil
}
