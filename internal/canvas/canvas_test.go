package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{name: "with hash", in: "#ff0000", want: color.RGBA{R: 255, A: 255}},
		{name: "without hash", in: "00ff80", want: color.RGBA{G: 255, B: 128, A: 255}},
		{name: "upper case", in: "#0000FF", want: color.RGBA{B: 255, A: 255}},
		{name: "too short", in: "#fff", wantErr: true},
		{name: "not hex", in: "#gg0000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, FormatColor(got)))
		})
	}
}

func mustParse(t *testing.T, s string) color.RGBA {
	t.Helper()
	c, err := ParseColor(s)
	require.NoError(t, err)
	return c
}

func TestPen_Valid(t *testing.T) {
	assert.True(t, DefaultPen().Valid())
	assert.True(t, Pen{Thickness: MinThickness}.Valid())
	assert.True(t, Pen{Thickness: MaxThickness}.Valid())
	assert.False(t, Pen{Thickness: MinThickness - 1}.Valid())
	assert.False(t, Pen{Thickness: MaxThickness + 1}.Valid())
}

func TestLayer_AppendAndClear(t *testing.T) {
	l := NewLayer()
	pen := DefaultPen()

	first := l.BeginStroke()
	l.Append(image.Pt(0, 0), image.Pt(1, 1), pen)
	l.Append(image.Pt(1, 1), image.Pt(2, 2), pen)
	second := l.BeginStroke()
	l.Append(image.Pt(5, 5), image.Pt(6, 6), pen)

	segs := l.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, first, segs[0].Stroke)
	assert.Equal(t, first, segs[1].Stroke)
	assert.Equal(t, second, segs[2].Stroke)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, l.Strokes())

	// Segments returns a copy.
	segs[0].From = image.Pt(99, 99)
	assert.Equal(t, image.Pt(0, 0), l.Segments()[0].From)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.Strokes())
}

func TestLayer_AppendWithoutStroke(t *testing.T) {
	l := NewLayer()
	seg := l.Append(image.Pt(0, 0), image.Pt(3, 4), DefaultPen())

	assert.NotEqual(t, uuid.Nil, seg.Stroke)
	assert.Equal(t, 1, l.Strokes())
}

func TestLayer_EmptyStrokeIsNotCounted(t *testing.T) {
	l := NewLayer()

	l.BeginStroke()
	l.BeginStroke()
	assert.Equal(t, 0, l.Strokes())

	l.Append(image.Pt(0, 0), image.Pt(1, 1), DefaultPen())
	l.Append(image.Pt(1, 1), image.Pt(2, 2), DefaultPen())
	assert.Equal(t, 1, l.Strokes())
}

func TestCompositor_Board(t *testing.T) {
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()

	l := NewLayer()
	l.Append(image.Pt(10, 50), image.Pt(90, 50), Pen{Color: color.RGBA{R: 255, A: 255}, Thickness: 4})

	c := NewCompositor(Options{Background: BackgroundBoard, Theme: ThemeLight})
	defer c.Close()

	out, err := c.Compose(&frame, l, Marker{})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 100, out.Rows())
	assert.Equal(t, 100, out.Cols())

	// Board pixel away from the line stays white.
	bg := out.GetVecbAt(5, 5)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{bg[0], bg[1], bg[2]})

	// Line pixel is red in BGR order.
	px := out.GetVecbAt(50, 50)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8{px[0], px[1], px[2]})
}

func TestCompositor_DarkThemeAndMarker(t *testing.T) {
	frame := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := NewCompositor(Options{Theme: ThemeDark})
	defer c.Close()

	out, err := c.Compose(&frame, NewLayer(), Marker{At: image.Pt(30, 30), Radius: 5, Visible: true})
	require.NoError(t, err)
	defer out.Close()

	bg := out.GetVecbAt(2, 2)
	assert.Equal(t, uint8(darkBoard), bg[0])

	m := out.GetVecbAt(30, 30)
	assert.Equal(t, MarkerColor.R, m[0])
}

func TestCompositor_Mirror(t *testing.T) {
	frame := gocv.NewMatWithSize(20, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()

	l := NewLayer()
	l.Append(image.Pt(5, 10), image.Pt(10, 10), Pen{Color: color.RGBA{B: 255, A: 255}, Thickness: 2})

	c := NewCompositor(Options{Mirror: true})
	defer c.Close()

	out, err := c.Compose(&frame, l, Marker{})
	require.NoError(t, err)
	defer out.Close()

	// The stroke on the left ends up on the right.
	right := out.GetVecbAt(10, 100-1-7)
	assert.Equal(t, uint8(255), right[0])
	left := out.GetVecbAt(10, 7)
	assert.Equal(t, uint8(255), left[0])
	assert.Equal(t, uint8(255), left[2], "left side should be plain board after mirroring")
}

func TestCompositor_Camera(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	c := NewCompositor(Options{Background: BackgroundCamera})
	defer c.Close()

	out, err := c.Compose(&frame, nil, Marker{})
	require.NoError(t, err)
	defer out.Close()

	px := out.GetVecbAt(0, 0)
	assert.Equal(t, []uint8{10, 20, 30}, []uint8{px[0], px[1], px[2]})
}

func TestCompositor_EmptyFrame(t *testing.T) {
	c := NewCompositor(Options{})
	defer c.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	out, err := c.Compose(&empty, NewLayer(), Marker{})
	defer out.Close()
	assert.Error(t, err)
}

func TestCompositor_Snapshot(t *testing.T) {
	c := NewCompositor(Options{})
	defer c.Close()

	_, err := c.SnapshotJPEG()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	frame := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()

	out, err := c.Compose(&frame, NewLayer(), Marker{})
	require.NoError(t, err)
	out.Close()

	data, err := c.SnapshotJPEG()
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "expected JPEG SOI marker")
}
