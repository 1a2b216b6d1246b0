package protocol

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

var writerPool = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(io.Discard, zlib.DefaultCompression)
		return w
	},
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := writerPool.Get().(*zlib.Writer)
	defer writerPool.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress inflates body, refusing to produce more than limit bytes.
func decompress(body []byte, limit int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if len(raw) > limit {
		return nil, fmt.Errorf("inflating payload: %w", ErrPayloadTooLarge)
	}
	return raw, nil
}
