// Package record implements archival: committed frames from a stream are
// encoded as a simple length-prefixed container and written to a
// zstd-compressed file on disk, one file per recording session.
package record

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// recordHead mirrors transcode's ingestHead: it pulls queued tags off a bus
// subscriber and stages them as frames entering the archival pipeline. Kept
// as its own small type rather than shared with transcode because the two
// packages own independent pipelines with no need to depend on each other.
type recordHead struct {
	sub *bus.Subscriber
}

func (h *recordHead) DoProcessFrame(dest map[int]*graph.Frame) bool {
	msg, ok := h.sub.Buffer().Read()
	if !ok {
		return false
	}
	fr := dest[graph.DefaultID]
	fr.PresentationTime = int64(msg.Timestamp) * 1000
	fr.Kind = uint8(msg.Type)
	fr.SetPayload(msg.Payload)
	fr.Consumed = true
	bus.ReleaseMessage(msg)
	return true
}

// archiveHeader is the fixed-size prefix written before every frame's
// payload: kind (1 byte), reserved (3 bytes for alignment), presentation
// time (8 bytes), payload length (4 bytes). All integers little-endian.
const archiveHeaderSize = 16

// ArchiveTail is a TransformTail that appends every committed frame it sees
// to a zstd-compressed archive file. Grounded on transcode.publishTail's
// shape (a Tail sink re-packaging committed frames) and on the teacher's
// bus.MediaMessage pooling discipline for payload reuse.
type ArchiveTail struct {
	file *os.File
	enc  *zstd.Encoder
	hdr  [archiveHeaderSize]byte
}

// NewArchiveTail creates (or truncates) path and wraps it in a zstd encoder.
// The returned ArchiveTail must be closed via Close once its pipeline stops.
func NewArchiveTail(path string) (*ArchiveTail, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &ArchiveTail{file: f, enc: enc}, nil
}

func (t *ArchiveTail) DoProcessFrame(origins map[int]*graph.Frame) bool {
	fr := origins[graph.DefaultID]
	if fr == nil || !fr.Consumed {
		return true
	}
	binary.LittleEndian.PutUint32(t.hdr[0:4], uint32(fr.Kind))
	binary.LittleEndian.PutUint64(t.hdr[4:12], uint64(fr.PresentationTime))
	binary.LittleEndian.PutUint32(t.hdr[12:16], uint32(len(fr.Payload)))

	if _, err := t.enc.Write(t.hdr[:]); err != nil {
		return true
	}
	if len(fr.Payload) > 0 {
		_, _ = t.enc.Write(fr.Payload)
	}
	return true
}

// Close flushes and closes the zstd stream and the underlying file.
func (t *ArchiveTail) Close() error {
	var encErr error
	if t.enc != nil {
		encErr = t.enc.Close()
	}
	fileErr := t.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

// ReadArchive decodes an archive file written by ArchiveTail back into its
// (kind, presentationTime, payload) records, invoking fn for each. Used by
// tests and offline tooling rather than the live pipeline.
func ReadArchive(r io.Reader, fn func(kind uint8, presentationTime int64, payload []byte) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	var hdr [archiveHeaderSize]byte
	for {
		if _, err := io.ReadFull(dec, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		kind := uint8(binary.LittleEndian.Uint32(hdr[0:4]))
		ts := int64(binary.LittleEndian.Uint64(hdr[4:12]))
		n := binary.LittleEndian.Uint32(hdr[12:16])

		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(dec, payload); err != nil {
				return err
			}
		}
		if err := fn(kind, ts, payload); err != nil {
			return err
		}
	}
}
