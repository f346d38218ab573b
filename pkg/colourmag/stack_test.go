package colourmag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMasterIdenticalFrames(t *testing.T) {
	spec := frameSpec{Rows: 12, Cols: 10, Background: 50, Noise: 3, Seed: 11}
	want := spec.pixels()

	for _, n := range []int{1, 2, 5} {
		frames := make([]Mat, n)
		for i := range frames {
			frames[i] = spec.mat()
		}
		stack := newTestStack(t, BandShort, frames...)
		master, err := CreateMaster(stack)
		require.NoError(t, err)
		assertPixelsEqual(t, want, float32Slice(master))
		master.Close()
	}
}

func TestCreateMasterMean(t *testing.T) {
	stack := newTestStack(t, BandLong, constantMat(4, 4, 2), constantMat(4, 4, 4), constantMat(4, 4, 9))
	master, err := CreateMaster(stack)
	require.NoError(t, err)
	defer master.Close()
	for _, v := range master.DataFloat32() {
		assert.InDelta(t, 5, v, 1e-6)
	}
}

func TestCreateMasterSingleFrameIsCopy(t *testing.T) {
	stack := newTestStack(t, BandShort, constantMat(3, 3, 1))
	master, err := CreateMaster(stack)
	require.NoError(t, err)
	defer master.Close()
	master.DataFloat32()[0] = 99
	assert.InDelta(t, 1, stack.Frames[0].DataFloat32()[0], 1e-9)
}

func TestNewFrameStackErrors(t *testing.T) {
	_, err := NewFrameStack(BandShort)
	assert.ErrorIs(t, err, ErrNoFrames)

	a, b := constantMat(4, 4, 0), constantMat(4, 5, 0)
	defer a.Close()
	defer b.Close()
	_, err = NewFrameStack(BandShort, a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, [2]int{4, 5}, se.Got)

	_, err = CreateMaster(nil)
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestComputeStats(t *testing.T) {
	stack := newTestStack(t, BandShort, constantMat(4, 4, 3), constantMat(4, 4, 8))
	stats := stack.ComputeStats(3, 5)
	require.Len(t, stats, 2)
	assert.InDelta(t, 3, stats[0].Median, 1e-9)
	assert.InDelta(t, 8, stats[1].Median, 1e-9)
	assert.Equal(t, stats, stack.Stats)
}
