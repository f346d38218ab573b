package colourmag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftData(t *testing.T) {
	src := NewMatWithSize(4, 5)
	defer src.Close()
	data := src.DataFloat32()
	for i := range data {
		data[i] = float32(i + 1)
	}

	t.Run("zero offset copies", func(t *testing.T) {
		out := ShiftData(src, Offset{})
		defer out.Close()
		assertPixelsEqual(t, float32Slice(src), float32Slice(out))
	})

	t.Run("moves content and zero fills", func(t *testing.T) {
		out := ShiftData(src, Offset{DX: 2, DY: 1})
		defer out.Close()
		got := out.DataFloat32()
		// out(y, x) = src(y-1, x-2)
		assert.Equal(t, float32(0), got[0])
		assert.Equal(t, float32(0), got[1*5+1])
		assert.Equal(t, data[0], got[1*5+2])
		assert.Equal(t, data[2*5+2], got[3*5+4])
	})

	t.Run("offset beyond frame is empty", func(t *testing.T) {
		out := ShiftData(src, Offset{DX: 7})
		defer out.Close()
		for _, v := range out.DataFloat32() {
			assert.Zero(t, v)
		}
	})

	t.Run("round trip restores interior", func(t *testing.T) {
		o := Offset{DX: -1, DY: 1}
		a := ShiftData(src, o)
		defer a.Close()
		b := ShiftData(a, o.Neg())
		defer b.Close()
		got := b.DataFloat32()
		for y := 0; y < 3; y++ {
			for x := 1; x < 5; x++ {
				assert.Equal(t, data[y*5+x], got[y*5+x], "pixel (%d,%d)", x, y)
			}
		}
	})
}

func registrationField(seed uint64) frameSpec {
	return frameSpec{Rows: 96, Cols: 100, Background: 100, Noise: 4, Seed: seed, Stars: fieldStars(1)}
}

func TestGetOffsetRecoversShift(t *testing.T) {
	shifts := []Offset{{}, {DX: 5, DY: -3}, {DX: -7, DY: 2}, {DX: 0, DY: 6}}
	ref := registrationField(1).mat()
	frames := make([]Mat, len(shifts))
	for i, s := range shifts {
		frames[i] = ShiftData(ref, s)
	}
	ref.Close()

	stack := newTestStack(t, BandShort, frames...)
	stats := stack.ComputeStats(3, 5)
	offsets, err := GetOffset(stack, stats, 0, DefaultRegistrationOptions())
	require.NoError(t, err)
	require.Len(t, offsets, len(shifts))
	for i, s := range shifts {
		assert.Equal(t, s.Neg(), offsets[i], "frame %d", i)
	}

	require.NoError(t, ShiftStack(stack, offsets))
	assert.Nil(t, stack.Stats)
}

func TestGetOffsetReferenceIsZero(t *testing.T) {
	ref := registrationField(2).mat()
	moved := ShiftData(ref, Offset{DX: 4, DY: 4})
	stack := newTestStack(t, BandLong, moved, ref)
	stats := stack.ComputeStats(3, 5)

	offsets, err := GetOffset(stack, stats, 1, DefaultRegistrationOptions())
	require.NoError(t, err)
	assert.Equal(t, Offset{}, offsets[1])
	assert.Equal(t, Offset{DX: -4, DY: -4}, offsets[0])
}

func TestGetOffsetSingleFrame(t *testing.T) {
	stack := newTestStack(t, BandShort, registrationField(3).mat())
	offsets, err := GetOffset(stack, stack.ComputeStats(3, 5), 0, DefaultRegistrationOptions())
	require.NoError(t, err)
	assert.Equal(t, []Offset{{}}, offsets)
}

func TestGetOffsetErrors(t *testing.T) {
	stack := newTestStack(t, BandShort, constantMat(8, 8, 1), constantMat(8, 8, 1))
	_, err := GetOffset(stack, stack.ComputeStats(3, 5), 2, DefaultRegistrationOptions())
	assert.Error(t, err)
	_, err = GetOffset(stack, nil, 0, DefaultRegistrationOptions())
	assert.Error(t, err)
}

func TestGetOffsetFlatFramesStayAligned(t *testing.T) {
	stack := newTestStack(t, BandShort, constantMat(16, 16, 5), constantMat(16, 16, 5))
	offsets, err := GetOffset(stack, stack.ComputeStats(3, 5), 0, DefaultRegistrationOptions())
	require.NoError(t, err)
	assert.Equal(t, []Offset{{}, {}}, offsets)
}

func TestRegisterFrameWithSearchLimit(t *testing.T) {
	ref := registrationField(4).mat()
	defer ref.Close()
	frame := ShiftData(ref, Offset{DX: -3, DY: 2})
	defer frame.Close()

	opts := DefaultRegistrationOptions()
	opts.MaxOffset = 8
	o, err := RegisterFrame(ref, frame, SigmaClippedStats(ref, 3, 5), SigmaClippedStats(frame, 3, 5), opts)
	require.NoError(t, err)
	assert.Equal(t, Offset{DX: 3, DY: -2}, o)

	small := constantMat(10, 10, 0)
	defer small.Close()
	_, err = RegisterFrame(ref, small, FrameStats{}, FrameStats{}, opts)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNextFastLen(t *testing.T) {
	tests := map[int]int{1: 1, 2: 2, 7: 8, 11: 12, 13: 15, 17: 18, 97: 100, 149: 150}
	for n, want := range tests {
		assert.Equal(t, want, nextFastLen(n), "n=%d", n)
	}
}

func TestRegisterFrameEqualPeaksPreferSmallestOffset(t *testing.T) {
	ref := frameSpec{Rows: 32, Cols: 48, Stars: []testStar{{X: 22, Y: 16, Amp: 1000, Sigma: 1.5}}}.mat()
	defer ref.Close()
	frame := frameSpec{Rows: 32, Cols: 48, Stars: []testStar{
		{X: 25, Y: 16, Amp: 1000, Sigma: 1.5},
		{X: 17, Y: 16, Amp: 1000, Sigma: 1.5},
	}}.mat()
	defer frame.Close()

	o, err := RegisterFrame(ref, frame, FrameStats{}, FrameStats{}, DefaultRegistrationOptions())
	require.NoError(t, err)
	assert.Equal(t, Offset{DX: -3, DY: 0}, o)
}
