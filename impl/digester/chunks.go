package digester

import (
	"io"
)

// maxEmptyReads bounds the number of consecutive zero byte reads tolerated from
// an io.Reader before the stream is considered stuck.
const maxEmptyReads = 100

type readerChunks struct {
	r   io.Reader
	buf []byte
	err error
}

// ReaderChunks adapts a reader into a chunk iterator that returns at most size
// bytes per chunk. A non-positive size selects DefaultChunkSize.
func ReaderChunks(r io.Reader, size int) Chunks {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerChunks{r: r, buf: make([]byte, size)}
}

func (rc *readerChunks) Next() ([]byte, error) {
	if rc.err != nil {
		return nil, rc.err
	}
	for i := 0; i < maxEmptyReads; i++ {
		n, err := rc.r.Read(rc.buf)
		if err != nil {
			// deliver the bytes now and the error on the next call
			rc.err = err
			if n > 0 {
				return rc.buf[:n], nil
			}
			return nil, err
		}
		if n > 0 {
			return rc.buf[:n], nil
		}
	}
	rc.err = io.ErrNoProgress
	return nil, rc.err
}

// SliceChunks returns an iterator over the passed chunks. Mostly useful for tests.
func SliceChunks(chunks ...[]byte) Chunks {
	return &sliceChunks{chunks: chunks}
}

type sliceChunks struct {
	chunks [][]byte
	pos    int
}

func (sc *sliceChunks) Next() ([]byte, error) {
	if sc.pos >= len(sc.chunks) {
		return nil, io.EOF
	}
	c := sc.chunks[sc.pos]
	sc.pos++
	return c, nil
}
