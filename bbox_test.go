package facenorm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBox_Extent(t *testing.T) {
	box := Extent([]Point{{X: 3, Y: 9}, {X: -1, Y: 4}, {X: 7, Y: 5}})
	assert.Equal(t, BoundingBox{MinX: -1, MinY: 4, MaxX: 7, MaxY: 9}, box)
	assert.Equal(t, 8.0, box.Width())
	assert.Equal(t, 5.0, box.Height())
}

func TestBBox_SquareBox(t *testing.T) {
	tests := []struct {
		name      string
		extent    BoundingBox
		normSize  int
		patchSize int
		want      BoundingBox
	}{
		{
			name:     "square extent without patch",
			extent:   BoundingBox{MinX: 60, MinY: 60, MaxX: 140, MaxY: 140},
			normSize: 100,
			want:     BoundingBox{MinX: 59, MinY: 59, MaxX: 141, MaxY: 141},
		},
		{
			name:     "wide extent grows vertically",
			extent:   BoundingBox{MinX: 0, MinY: 40, MaxX: 80, MaxY: 60},
			normSize: 100,
			want:     BoundingBox{MinX: -1, MinY: 9, MaxX: 81, MaxY: 91},
		},
		{
			name:      "tall extent grows horizontally with patch",
			extent:    BoundingBox{MinX: 40, MinY: 0, MaxX: 60, MaxY: 70},
			normSize:  100,
			patchSize: 30,
			// side 70, region int(16 / 68 * 70) = 16
			want: BoundingBox{MinX: -2, MinY: -17, MaxX: 102, MaxY: 87},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquareBox(tt.extent, tt.normSize, tt.patchSize)
			assert.InDelta(t, tt.want.MinX, got.MinX, 1e-9)
			assert.InDelta(t, tt.want.MinY, got.MinY, 1e-9)
			assert.InDelta(t, tt.want.MaxX, got.MaxX, 1e-9)
			assert.InDelta(t, tt.want.MaxY, got.MaxY, 1e-9)
			assert.InDelta(t, got.Width(), got.Height(), 1e-9)
		})
	}
}

func TestBBox_AspectBoxKeepsSquare(t *testing.T) {
	extent := BoundingBox{MinX: 20, MinY: 30, MaxX: 70, MaxY: 80}

	got := AspectBox(extent, 100, 100, 30)
	assert.InDelta(t, got.Width(), got.Height(), 1e-9)
	// px = 50 / 70 * 15
	px := 50.0/70*15 + 2
	assert.InDelta(t, 20-px, got.MinX, 1e-9)
	assert.InDelta(t, 80+px, got.MaxY, 1e-9)
}

func TestBBox_AspectBoxRatio(t *testing.T) {
	extent := BoundingBox{MinX: 0, MinY: 0, MaxX: 40, MaxY: 40}

	// The 120x80 face area with 20 pixel patch is 100x60 wide.
	got := AspectBox(extent, 120, 80, 20)
	inner := BoundingBox{MinX: got.MinX + 2, MinY: got.MinY + 2, MaxX: got.MaxX - 2, MaxY: got.MaxY - 2}
	assert.InDelta(t, 120.0/80, inner.Width()/inner.Height(), 1e-9)

	// The tall area extends the height instead.
	got = AspectBox(extent, 60, 120, 0)
	assert.InDelta(t, 40+4, got.Width(), 1e-9)
	assert.InDelta(t, 80+4, got.Height(), 1e-9)
}

func TestBBox_Validate(t *testing.T) {
	assert.NoError(t, validateBox(BoundingBox{MinX: 0, MinY: 0, MaxX: 200, MaxY: 200}, 200, 200))

	for _, box := range []BoundingBox{
		{MinX: -0.5, MinY: 10, MaxX: 50, MaxY: 50},
		{MinX: 10, MinY: 10, MaxX: 200.5, MaxY: 50},
		{MinX: 10, MinY: 10, MaxX: 10, MaxY: 50},
		{MinX: math.NaN(), MinY: 10, MaxX: 20, MaxY: 50},
	} {
		assert.ErrorIs(t, validateBox(box, 200, 200), ErrOutOfBounds, "box %v", box)
	}
}

func TestBBox_Rect(t *testing.T) {
	box := BoundingBox{MinX: 10.7, MinY: 5.2, MaxX: 52.9, MaxY: 47.3}
	r := box.Rect()
	assert.Equal(t, 10, r.Min.X)
	assert.Equal(t, 5, r.Min.Y)
	assert.Equal(t, 42, r.Dx())
	assert.Equal(t, 42, r.Dy())
}
