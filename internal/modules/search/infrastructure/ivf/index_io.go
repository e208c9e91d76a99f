package ivf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

var indexMagic = [4]byte{'A', 'S', 'I', 'V'}

const indexVersion uint32 = 1

// 防止损坏的头部引发超大分配
const (
	maxDim     = 1 << 16
	maxBuildID = 256
)

// ErrCorrupt 索引文件格式不合法
var ErrCorrupt = errors.New("ivf: corrupt index file")

// Save 以紧凑二进制格式写出索引。
//
//	[4B magic "ASIV"] [4B version]
//	[4B dim] [4B nlist] [8B n] [4B nprobe]
//	[4B buildIDLen] [buildID] [8B builtAt unix nano]
//	[nlist*dim float32 centroids]
//	per list: [4B len] [len × 4B positions]
//	[n*dim float32 vectors]
func (ix *Index) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	le := binary.LittleEndian
	write := func(v any) error { return binary.Write(bw, le, v) }

	if _, err := bw.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("ivf: save magic: %w", err)
	}
	buildID := []byte(ix.Meta.BuildID)
	if len(buildID) > maxBuildID {
		return fmt.Errorf("ivf: build id too long")
	}
	for _, v := range []any{
		indexVersion,
		uint32(ix.dim),
		uint32(ix.nlist),
		uint64(ix.n),
		uint32(ix.NProbe()),
		uint32(len(buildID)),
	} {
		if err := write(v); err != nil {
			return fmt.Errorf("ivf: save header: %w", err)
		}
	}
	if _, err := bw.Write(buildID); err != nil {
		return err
	}
	if err := write(ix.Meta.BuiltAt.UnixNano()); err != nil {
		return err
	}

	if ix.nlist > 0 {
		if err := write(ix.centroids); err != nil {
			return fmt.Errorf("ivf: save centroids: %w", err)
		}
	}
	for _, list := range ix.lists {
		if err := write(uint32(len(list))); err != nil {
			return err
		}
		if len(list) > 0 {
			if err := write(list); err != nil {
				return fmt.Errorf("ivf: save lists: %w", err)
			}
		}
	}
	if ix.n > 0 {
		if err := write(ix.vectors); err != nil {
			return fmt.Errorf("ivf: save vectors: %w", err)
		}
	}
	return bw.Flush()
}

// Load 读取 Save 写出的索引，并校验每个位置恰好出现在一个倒排列表中
func Load(r io.Reader) (*Index, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	le := binary.LittleEndian
	read := func(v any) error { return binary.Read(br, le, v) }

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("ivf: load magic: %w", err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic[:])
	}

	var (
		version, dim, nlist, nprobe, idLen uint32
		n                                  uint64
		builtAt                            int64
	)
	for _, v := range []any{&version, &dim, &nlist, &n, &nprobe, &idLen} {
		if err := read(v); err != nil {
			return nil, fmt.Errorf("ivf: load header: %w", err)
		}
	}
	if version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if dim == 0 || dim > maxDim || idLen > maxBuildID || n > math.MaxUint32 || uint64(nlist) > n || (n > 0 && nlist == 0) {
		return nil, fmt.Errorf("%w: bad header dim=%d nlist=%d n=%d", ErrCorrupt, dim, nlist, n)
	}
	buildID := make([]byte, idLen)
	if _, err := io.ReadFull(br, buildID); err != nil {
		return nil, fmt.Errorf("ivf: load build id: %w", err)
	}
	if err := read(&builtAt); err != nil {
		return nil, err
	}

	ix := &Index{
		Meta:  Meta{BuildID: string(buildID), BuiltAt: time.Unix(0, builtAt).UTC()},
		dim:   int(dim),
		nlist: int(nlist),
		n:     int(n),
	}
	ix.SetNProbe(int(nprobe))

	if nlist > 0 {
		ix.centroids = make([]float32, int(nlist)*int(dim))
		if err := read(ix.centroids); err != nil {
			return nil, fmt.Errorf("ivf: load centroids: %w", err)
		}
	}

	seen := roaring.New()
	ix.lists = make([][]uint32, nlist)
	for c := range ix.lists {
		var size uint32
		if err := read(&size); err != nil {
			return nil, fmt.Errorf("ivf: load lists: %w", err)
		}
		if uint64(size) > n {
			return nil, fmt.Errorf("%w: list %d has %d entries", ErrCorrupt, c, size)
		}
		list := make([]uint32, size)
		if size > 0 {
			if err := read(list); err != nil {
				return nil, fmt.Errorf("ivf: load lists: %w", err)
			}
		}
		for _, p := range list {
			if uint64(p) >= n || !seen.CheckedAdd(p) {
				return nil, fmt.Errorf("%w: position %d out of range or duplicated", ErrCorrupt, p)
			}
		}
		ix.lists[c] = list
	}
	if seen.GetCardinality() != n {
		return nil, fmt.Errorf("%w: lists cover %d of %d positions", ErrCorrupt, seen.GetCardinality(), n)
	}

	if n > 0 {
		ix.vectors = make([]float32, int(n)*int(dim))
		if err := read(ix.vectors); err != nil {
			return nil, fmt.Errorf("ivf: load vectors: %w", err)
		}
	}
	return ix, nil
}
