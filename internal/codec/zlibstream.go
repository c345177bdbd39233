package codec

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// zlibEncodeStream keeps one zlib.Writer alive for the lifetime of a
// session, so its LZ77 dictionary carries state across every Zlib/ZRLE
// rectangle, mirroring compress/zlib's Resetter pattern
// rather than rebuilding the compressor per rectangle.
type zlibEncodeStream struct {
	out   *bytes.Buffer
	zw    *zlib.Writer
	level int
}

func newZlibEncodeStream() *zlibEncodeStream {
	return &zlibEncodeStream{out: &bytes.Buffer{}, level: zlib.DefaultCompression}
}

// setLevel applies a compression level to the stream. It only takes effect
// before the first rectangle: once the deflate stream has started, its
// header and dictionary are fixed for the session and the peer's inflate
// side would desynchronize on a mid-stream restart.
func (s *zlibEncodeStream) setLevel(level int) {
	if s.zw == nil {
		s.level = level
	}
}

// compress writes data into the persistent stream, flushes it to a byte
// boundary, and returns exactly the compressed bytes produced for this
// call -- the framed payload for one rectangle.
func (s *zlibEncodeStream) compress(data []byte) ([]byte, error) {
	if s.zw == nil {
		zw, err := zlib.NewWriterLevel(s.out, s.level)
		if err != nil {
			return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "zlib level", err)
		}
		s.zw = zw
	}
	s.out.Reset()
	if _, err := s.zw.Write(data); err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "zlib compress", err)
	}
	if err := s.zw.Flush(); err != nil {
		return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "zlib flush", err)
	}
	framed := make([]byte, s.out.Len())
	copy(framed, s.out.Bytes())
	return framed, nil
}

// zlibDecodeStream is the decode-side counterpart: one zlib.Reader kept
// alive across rectangles, fed length-framed chunks as they arrive.
type zlibDecodeStream struct {
	feed *feedReader
	zr   io.Reader
}

func newZlibDecodeStream() *zlibDecodeStream {
	return &zlibDecodeStream{feed: &feedReader{}}
}

// feedBytes hands the stream this rectangle's compressed bytes and returns an
// io.Reader that yields the decompressed tile stream; callers read exactly
// as many bytes as their tile grammar requires.
func (s *zlibDecodeStream) feedBytes(framed []byte) (io.Reader, error) {
	s.feed.data = framed
	if s.zr == nil {
		zr, err := zlib.NewReader(s.feed)
		if err != nil {
			return nil, ltsmerr.Wrap(ltsmerr.CodecFormat, "zlib header", err)
		}
		s.zr = zr
	}
	return s.zr, nil
}

// feedReader is an io.Reader whose backing slice is replaced before each
// rectangle; it reports io.EOF once the current rectangle's bytes are
// exhausted, which is safe because the zlib.Writer side Flush()es to a
// byte boundary after every rectangle, leaving nothing pending to decode.
type feedReader struct {
	data []byte
}

func (f *feedReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}
