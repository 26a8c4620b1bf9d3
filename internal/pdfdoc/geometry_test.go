package pdfdoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectCheckBounds(t *testing.T) {
	const w, h = 595.0, 842.0

	tests := []struct {
		name    string
		rect    Rect
		wantErr bool
	}{
		{"redaction box", Rect{40, 464.5, 400, 580}, false},
		{"full page", Rect{0, 0, w, h}, false},
		{"degenerate line", Rect{10, 10, 10, 50}, false},
		{"negative x0", Rect{-1, 0, 10, 10}, true},
		{"x1 past width", Rect{0, 0, w + 0.01, 10}, true},
		{"negative y0", Rect{0, -5, 10, 10}, true},
		{"y1 past height", Rect{0, 0, 10, h + 1}, true},
		{"inverted x", Rect{50, 0, 10, 10}, true},
		{"inverted y", Rect{0, 50, 10, 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rect.CheckBounds(w, h)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrGeometry))
			var gerr *GeometryError
			assert.True(t, errors.As(err, &gerr))
			assert.Equal(t, "CheckBounds", gerr.Op)
		})
	}
}

func TestRectAt(t *testing.T) {
	r := RectAt(Point{X: 230, Y: 250}, Size{Width: 120, Height: 120})
	assert.Equal(t, Rect{230, 250, 350, 370}, r)
	assert.Equal(t, 120.0, r.Width())
	assert.Equal(t, 120.0, r.Height())
	assert.False(t, r.Empty())
	assert.True(t, Rect{1, 1, 1, 5}.Empty())
}
