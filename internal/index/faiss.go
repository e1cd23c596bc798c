package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// faiss serialization of IndexFlatIP:
//
//	"IxFI" | d int32 | ntotal int64 | dummy int64 | dummy int64 | is_trained uint8 |
//	metric_type int32 | [metric_arg float32 if metric_type > 1] | n uint64 | n float32
//
// n counts floats (d*ntotal) in both the legacy xb and the newer codes layout.
var faissFlatIP = [4]byte{'I', 'x', 'F', 'I'}

const (
	faissMetricIP    = 0
	faissHeaderDummy = int64(1 << 20)
)

// ReadFaissFlatIP decodes a faiss.write_index dump of an IndexFlatIP.
// Other index types are rejected; their codes are not raw vectors.
func ReadFaissFlatIP(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("read faiss magic: %w", err)
	}
	if magic != faissFlatIP {
		return nil, fmt.Errorf("unsupported faiss index type %q (want IxFI)", magic[:])
	}

	var hdr struct {
		D         int32
		NTotal    int64
		Dummy1    int64
		Dummy2    int64
		IsTrained uint8
		Metric    int32
	}
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read faiss header: %w", err)
	}
	if hdr.Metric != faissMetricIP {
		return nil, fmt.Errorf("faiss metric %d is not inner product", hdr.Metric)
	}
	if hdr.D < 0 || hdr.NTotal < 0 {
		return nil, fmt.Errorf("faiss header: negative shape d=%d ntotal=%d", hdr.D, hdr.NTotal)
	}

	var n uint64
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read faiss vector size: %w", err)
	}
	want := uint64(hdr.D) * uint64(hdr.NTotal)
	if n != want {
		return nil, fmt.Errorf("faiss vector size %d != d*ntotal %d", n, want)
	}
	if n > math.MaxInt32 {
		return nil, errors.New("faiss index too large")
	}

	m := &Matrix{Rows: int(hdr.NTotal), Dim: int(hdr.D), Data: make([]float32, n)}
	if err := binary.Read(br, binary.LittleEndian, m.Data); err != nil {
		return nil, fmt.Errorf("read faiss vectors: %w", err)
	}
	return m, nil
}

// WriteFaissFlatIP encodes m the way faiss.write_index stores an IndexFlatIP.
func WriteFaissFlatIP(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	fields := []any{
		faissFlatIP,
		int32(m.Dim),
		int64(m.Rows),
		faissHeaderDummy,
		faissHeaderDummy,
		uint8(1),
		int32(faissMetricIP),
		uint64(len(m.Data)),
		m.Data,
	}
	for _, f := range fields {
		if err := binary.Write(bw, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("write faiss index: %w", err)
		}
	}
	return bw.Flush()
}
