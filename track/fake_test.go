package track

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"teslacam/models"
)

// fakeSegment describes one synthetic segment file.
type fakeSegment struct {
	frames  int
	missing bool         // Open fails
	badAt   map[int]bool // local frames that fail to decode
	eofAt   int          // ReadFrame returns io.EOF from here when > 0
}

// fakeOpener serves fakeSegments by path and counts open decoders.
type fakeOpener struct {
	mu       sync.Mutex
	segments map[string]fakeSegment
	seekErrs map[string]int // remaining failing Seek calls per path
	open     int
	opens    int
}

func newFakeOpener(segments map[string]fakeSegment) *fakeOpener {
	return &fakeOpener{segments: segments}
}

func (o *fakeOpener) Open(_ context.Context, path string) (Decoder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	seg, ok := o.segments[path]
	if !ok || seg.missing {
		return nil, errors.New("no such file")
	}
	o.open++
	o.opens++
	return &fakeDecoder{opener: o, path: path, seg: seg}, nil
}

// failSeeks makes the next n Seek calls on path fail.
func (o *fakeOpener) failSeeks(path string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seekErrs == nil {
		o.seekErrs = map[string]int{}
	}
	o.seekErrs[path] = n
}

func (o *fakeOpener) takeSeekErr(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seekErrs[path] > 0 {
		o.seekErrs[path]--
		return true
	}
	return false
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

type fakeDecoder struct {
	opener *fakeOpener
	path   string
	seg    fakeSegment
	pos    int
	closed bool
}

func (d *fakeDecoder) Info() models.StreamInfo {
	return models.StreamInfo{Frames: d.seg.frames, FPS: 36, Width: 4, Height: 2}
}

func (d *fakeDecoder) Seek(frame int) error {
	if d.opener.takeSeekErr(d.path) {
		return errors.New("seek failed")
	}
	d.pos = frame
	return nil
}

// ReadFrame returns a 4x2 frame whose first pixel encodes the local index.
func (d *fakeDecoder) ReadFrame() (*image.RGBA, error) {
	limit := d.seg.frames
	if d.seg.eofAt > 0 {
		limit = d.seg.eofAt
	}
	if d.pos >= limit {
		return nil, io.EOF
	}
	local := d.pos
	d.pos++
	if d.seg.badAt[local] {
		return nil, errors.New("corrupt frame")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Pix[0] = byte(local)
	img.Pix[1] = byte(len(d.path))
	img.Pix[3] = 255
	return img, nil
}

func (d *fakeDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.opener.mu.Lock()
	d.opener.open--
	d.opener.mu.Unlock()
	return nil
}

// segmentsOf builds paths "<cam>/<i>" with the given frame counts.
func segmentsOf(cam string, counts ...int) ([]string, map[string]fakeSegment) {
	paths := make([]string, len(counts))
	segs := make(map[string]fakeSegment, len(counts))
	for i, n := range counts {
		p := cam + "/" + string(rune('a'+i))
		paths[i] = p
		segs[p] = fakeSegment{frames: n}
	}
	return paths, segs
}
