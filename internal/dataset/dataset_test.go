package dataset_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/armanet/internal/dataset"
)

func writeIDX(t *testing.T, path string, header []uint32, body []byte, gz bool) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(body)

	data := buf.Bytes()
	if gz {
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = zbuf.Bytes()
		path += ".gz"
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func writeMNIST(t *testing.T, dir, prefix string, n int, gz bool) {
	t.Helper()
	pixels := make([]byte, n*2*2)
	for i := range pixels {
		pixels[i] = byte(i * 20)
	}
	labels := make([]byte, n)
	for i := range labels {
		labels[i] = byte(i % 10)
	}
	writeIDX(t, filepath.Join(dir, prefix+"-images-idx3-ubyte"), []uint32{0x803, uint32(n), 2, 2}, pixels, gz)
	writeIDX(t, filepath.Join(dir, prefix+"-labels-idx1-ubyte"), []uint32{0x801, uint32(n)}, labels, gz)
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, "train", 3, false)

	d, err := dataset.LoadMNIST(dir, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 1, d.Channels)
	assert.Equal(t, 2, d.Height)
	assert.Equal(t, 4, d.ExampleSize())
	assert.Equal(t, []int32{0, 1, 2}, d.Labels)

	want := (float32(20)/255 - 0.1307) / 0.3081
	assert.InDelta(t, want, d.Pixels[1], 1e-6)
}

func TestLoadMNISTGzipAndLimit(t *testing.T) {
	dir := t.TempDir()
	writeMNIST(t, dir, "t10k", 5, true)

	d, err := dataset.LoadMNIST(dir, false, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Len(t, d.Pixels, 8)
}

func TestLoadMNISTErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := dataset.LoadMNIST(dir, true, 0)
	require.Error(t, err)

	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"), []uint32{0x999, 1, 2, 2}, make([]byte, 4), false)
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{0x801, 1}, []byte{0}, false)
	_, err = dataset.LoadMNIST(dir, true, 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"), []uint32{0x803, 2, 2, 2}, make([]byte, 8), false)
	_, err = dataset.LoadMNIST(dir, true, 0)
	require.ErrorIs(t, err, dataset.ErrFormat, "label count mismatch")
}

func TestLoadMNISTRejectsOversizedHeaders(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "train-images-idx3-ubyte")
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{0x801, 1}, []byte{0}, false)

	// Announced size past the payload bound.
	writeIDX(t, images, []uint32{0x803, 0xFFFFFFFF, 4096, 4096}, make([]byte, 16), false)
	_, err := dataset.LoadMNIST(dir, true, 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	// Within the bound but far larger than the file.
	writeIDX(t, images, []uint32{0x803, 1 << 20, 28, 28}, make([]byte, 28*28), false)
	_, err = dataset.LoadMNIST(dir, true, 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	writeIDX(t, images, []uint32{0x803, 1, 2, 2}, make([]byte, 4), false)
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{0x801, 0xFFFFFFFF}, []byte{0}, true)
	require.NoError(t, os.Remove(filepath.Join(dir, "train-labels-idx1-ubyte")))
	_, err = dataset.LoadMNIST(dir, true, 0)
	require.ErrorIs(t, err, dataset.ErrFormat)
}

func cifarRecords(n, labelBytes int) []byte {
	rec := labelBytes + 3*32*32
	out := make([]byte, n*rec)
	for i := 0; i < n; i++ {
		r := out[i*rec : (i+1)*rec]
		if labelBytes == 2 {
			r[0] = 7 // coarse
		}
		r[labelBytes-1] = byte(i + 3)
		for j := labelBytes; j < rec; j++ {
			r[j] = 255
		}
	}
	return out
}

func TestLoadCIFAR10(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		name := filepath.Join(dir, "data_batch_"+string(rune('0'+i))+".bin")
		require.NoError(t, os.WriteFile(name, cifarRecords(2, 1), 0o600))
	}

	d, err := dataset.LoadCIFAR(dir, 10, true, 0)
	require.NoError(t, err)
	assert.Equal(t, "CIFAR10", d.Name)
	assert.Equal(t, 10, d.Len())
	assert.Equal(t, 3, d.Channels)
	assert.Equal(t, int32(4), d.Labels[1])
	assert.InDelta(t, (1-0.4914)/0.2470, d.Pixels[0], 1e-5)
	assert.InDelta(t, (1-0.4465)/0.2616, d.Example(0)[2*1024], 1e-5)

	d, err = dataset.LoadCIFAR(dir, 10, true, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len(), "limit spans files")
}

func TestLoadCIFAR100UsesFineLabel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.bin"), cifarRecords(2, 2), 0o600))

	d, err := dataset.LoadCIFAR(dir, 100, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, d.Labels)
	assert.Equal(t, 100, d.Classes)
}

func TestLoadCIFARTruncated(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_batch.bin"), cifarRecords(1, 1)[:100], 0o600))

	_, err := dataset.LoadCIFAR(dir, 10, false, 0)
	require.ErrorIs(t, err, dataset.ErrFormat)

	_, err = dataset.LoadCIFAR(dir, 20, false, 0)
	require.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	a := dataset.Synthetic(20, 3, 8, 4, 1)
	b := dataset.Synthetic(20, 3, 8, 4, 1)
	require.NoError(t, a.Validate())
	assert.Equal(t, a.Pixels, b.Pixels, "same seed, same data")
	assert.Equal(t, int32(1), a.Labels[5])

	// Examples of one class are closer to each other than to another class.
	dist := func(x, y []float32) float64 {
		var s float64
		for i := range x {
			d := float64(x[i] - y[i])
			s += d * d
		}
		return math.Sqrt(s)
	}
	assert.Less(t, dist(a.Example(0), a.Example(4)), dist(a.Example(0), a.Example(1)))
}

func TestChannelStatsAndNormalize(t *testing.T) {
	d := &dataset.Images{
		Name: "tiny", Channels: 2, Height: 1, Width: 2, Classes: 2,
		Pixels: []float32{1, 3, 10, 10, 3, 1, 20, 20},
		Labels: []int32{0, 1},
	}
	require.NoError(t, d.Validate())

	mean, std := d.ChannelStats()
	assert.InDeltaSlice(t, []float64{2, 15}, mean, 1e-9)
	assert.InDeltaSlice(t, []float64{1, 5}, std, 1e-9)

	d.Normalize(mean, std)
	mean, std = d.ChannelStats()
	assert.InDeltaSlice(t, []float64{0, 0}, mean, 1e-6)
	assert.InDeltaSlice(t, []float64{1, 1}, std, 1e-6)
}

func TestValidate(t *testing.T) {
	d := &dataset.Images{Name: "bad", Channels: 1, Height: 1, Width: 1, Classes: 2,
		Pixels: []float32{0}, Labels: []int32{2}}
	require.ErrorIs(t, d.Validate(), dataset.ErrFormat)

	d.Labels = []int32{1, 0}
	require.ErrorIs(t, d.Validate(), dataset.ErrFormat)
}

func TestGatherAndHead(t *testing.T) {
	d := dataset.Synthetic(6, 1, 2, 3, 0)
	x, y := d.Gather([]int{4, 1})
	assert.Equal(t, []int32{1, 1}, y)
	assert.Equal(t, d.Example(4), x[:4])
	assert.Equal(t, d.Example(1), x[4:])

	assert.Equal(t, 2, d.Head(2).Len())
	assert.Equal(t, 6, d.Head(0).Len())
}

func TestBatches(t *testing.T) {
	b := dataset.Batches(10, 4, nil, false)
	require.Len(t, b, 3)
	assert.Equal(t, []int{8, 9}, b[2])

	b = dataset.Batches(10, 4, nil, true)
	assert.Len(t, b, 2)

	seen := make(map[int]bool)
	for _, batch := range dataset.Batches(10, 3, rand.New(rand.NewSource(1)), false) {
		for _, i := range batch {
			seen[i] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestLoadDispatch(t *testing.T) {
	d, err := dataset.Load(dataset.Source{Name: "synthetic", Limit: 8, Channels: 3, Size: 4, Classes: 2}, true)
	require.NoError(t, err)
	assert.Equal(t, 8, d.Len())

	test, err := dataset.Load(dataset.Source{Name: "synthetic", Limit: 8, Channels: 3, Size: 4, Classes: 2}, false)
	require.NoError(t, err)
	assert.NotEqual(t, d.Pixels, test.Pixels)

	_, err = dataset.Load(dataset.Source{Name: "imagenet"}, true)
	require.Error(t, err)
}
