package gmm

import (
	"context"
	"math"
	"math/rand"
	"testing"
)

func solidImage(w, h int, color [3]float32) []float32 {
	img := make([]float32, w*h*Channels)
	for i := 0; i < w*h; i++ {
		img[i*Channels] = color[0]
		img[i*Channels+1] = color[1]
		img[i*Channels+2] = color[2]
	}
	return img
}

func fillLabels(n int, v int32) []int32 {
	labels := make([]int32, n)
	for i := range labels {
		labels[i] = v
	}
	return labels
}

func TestFinalizeUniformImage(t *testing.T) {
	const w, h = 8, 8
	cfg := Config{Width: w, Height: h, MixtureCount: 1, GaussiansPerMixture: 2, TileSize: 4}

	m := New(cfg, solidImage(w, h, [3]float32{50, 100, 150}), fillLabels(w*h, 0))

	if err := m.reduceStatistics(context.Background()); err != nil {
		t.Fatalf("reduceStatistics: %v", err)
	}
	m.finalize(true)

	cl := m.clusters[0]
	if cl.Count != float64(w*h) {
		t.Fatalf("count = %f, want %d", cl.Count, w*h)
	}
	want := [3]float64{50, 100, 150}
	if cl.Mean != want {
		t.Errorf("mean = %v, want %v", cl.Mean, want)
	}

	// A uniform image has zero sample covariance, so only the epsilon
	// regularization remains on the diagonal.
	for i, v := range cl.Cov {
		wantV := 0.0
		if i == 0 || i == 3 || i == 5 {
			wantV = CovarianceEpsilon
		}
		if math.Abs(v-wantV) > 1e-9 {
			t.Errorf("cov[%d] = %g, want %g", i, v, wantV)
		}
	}
	if math.Abs(cl.Det-CovarianceEpsilon*CovarianceEpsilon*CovarianceEpsilon) > 1e-12 {
		t.Errorf("det = %g", cl.Det)
	}
}

func TestFinalizeMatchesSampleMoments(t *testing.T) {
	const w, h = 10, 7
	rng := rand.New(rand.NewSource(42))

	img := make([]float32, w*h*Channels)
	for i := range img {
		img[i] = float32(rng.Intn(256))
	}

	cfg := Config{Width: w, Height: h, MixtureCount: 1, GaussiansPerMixture: 2, TileSize: 4}
	m := New(cfg, img, fillLabels(w*h, 0))

	if err := m.reduceStatistics(context.Background()); err != nil {
		t.Fatalf("reduceStatistics: %v", err)
	}
	m.finalize(false)

	// Naive single-threaded reference moments.
	n := float64(w * h)
	var mean [3]float64
	for i := 0; i < w*h; i++ {
		p := m.pixelAt(i)
		for c := 0; c < 3; c++ {
			mean[c] += p[c]
		}
	}
	for c := 0; c < 3; c++ {
		mean[c] /= n
	}

	var cov [6]float64
	for i := 0; i < w*h; i++ {
		p := m.pixelAt(i)
		dx, dy, dz := p[0]-mean[0], p[1]-mean[1], p[2]-mean[2]
		cov[0] += dx * dx
		cov[1] += dx * dy
		cov[2] += dx * dz
		cov[3] += dy * dy
		cov[4] += dy * dz
		cov[5] += dz * dz
	}

	cl := m.clusters[0]
	for c := 0; c < 3; c++ {
		if math.Abs(cl.Mean[c]-mean[c]) > 1e-9 {
			t.Errorf("mean[%d] = %v, want %v", c, cl.Mean[c], mean[c])
		}
	}
	for i := range cov {
		want := cov[i] / n
		if i == 0 || i == 3 || i == 5 {
			want += CovarianceEpsilon
		}
		if math.Abs(cl.Cov[i]-want) > 1e-8 {
			t.Errorf("cov[%d] = %v, want %v", i, cl.Cov[i], want)
		}
	}
}

func TestZeroCountClusterFinalizesToZero(t *testing.T) {
	const w, h = 4, 4
	cfg := Config{Width: w, Height: h, MixtureCount: 2, GaussiansPerMixture: 1, TileSize: 4}

	// Every pixel excluded.
	m := New(cfg, solidImage(w, h, [3]float32{10, 10, 10}), fillLabels(w*h, Unlabeled))

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for c, cl := range m.clusters {
		if cl != (Cluster{}) {
			t.Errorf("cluster %d = %+v, want zero record", c, cl)
		}
	}

	dst := make([]float32, 2*w*h)
	if err := m.DataTerm(context.Background(), dst); err != nil {
		t.Fatalf("DataTerm: %v", err)
	}
	for i, v := range dst {
		if v != 0 || math.IsNaN(float64(v)) {
			t.Fatalf("dst[%d] = %v, want 0", i, v)
		}
	}
}

func TestSplitSeparatesBimodalCluster(t *testing.T) {
	const w, h = 8, 4
	cfg := Config{Width: w, Height: h, MixtureCount: 1, GaussiansPerMixture: 2, TileSize: 4}

	img := make([]float32, w*h*Channels)
	for i := 0; i < w*h; i++ {
		v := float32(10)
		if i%w >= w/2 {
			v = 200
		}
		img[i*Channels], img[i*Channels+1], img[i*Channels+2] = v, v, v
	}

	m := New(cfg, img, fillLabels(w*h, 0))

	// Parent variance before the split, for the monotonicity check.
	if err := m.reduceStatistics(context.Background()); err != nil {
		t.Fatalf("reduceStatistics: %v", err)
	}
	m.finalize(false)
	parentTrace := m.clusters[0].Cov.Trace()

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// The two color populations must now live in separate clusters.
	if got := m.labels.Count(0); got != w*h/2 {
		t.Errorf("cluster 0 count = %d, want %d", got, w*h/2)
	}
	if got := m.labels.Count(1); got != w*h/2 {
		t.Errorf("cluster 1 count = %d, want %d", got, w*h/2)
	}
	for i := 0; i < w*h; i++ {
		want := int32(0)
		if i%w >= w/2 {
			want = 1 // brighter half projects above the mean threshold
		}
		if got := m.labels.At(i); got != want {
			t.Fatalf("pixel %d label = %d, want %d", i, got, want)
		}
	}

	// Splitting never increases total within-cluster variance.
	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	childTraces := m.clusters[0].Cov.Trace() + m.clusters[1].Cov.Trace()
	if childTraces > parentTrace {
		t.Errorf("child trace sum %f exceeds parent trace %f", childTraces, parentTrace)
	}
}

func TestFindSplitsSkipsDegenerateMixtures(t *testing.T) {
	const w, h = 4, 4
	cfg := Config{Width: w, Height: h, MixtureCount: 2, GaussiansPerMixture: 2, TileSize: 4}

	// Mixture 0 gets all pixels, mixture 1 none.
	m := New(cfg, solidImage(w, h, [3]float32{10, 20, 30}), fillLabels(w*h, 0))

	if err := m.reduceStatistics(context.Background()); err != nil {
		t.Fatalf("reduceStatistics: %v", err)
	}
	m.finalize(false)

	splits := m.findSplits()
	if splits[0] == nil {
		t.Error("mixture 0 should produce a split candidate")
	}
	if splits[1] != nil {
		t.Errorf("mixture 1 has no pixels, got candidate %+v", splits[1])
	}
}

func TestTreeReduceMatchesSequentialSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, tiles := range []int{1, 2, 3, 7, 16, 33} {
		sc := newScratch(tiles, 1)
		var want moments
		for ti := 0; ti < tiles; ti++ {
			var p moments
			for i := range p {
				p[i] = rng.Float64() * 100
			}
			sc.partials[ti] = p
			want.add(&p)
		}

		got := sc.treeReduce(0)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-9 {
				t.Errorf("tiles=%d: stat %d = %v, want %v", tiles, i, got[i], want[i])
			}
		}
	}
}

func TestDataTermSumsToOne(t *testing.T) {
	const w, h = 16, 16
	rng := rand.New(rand.NewSource(3))

	img := make([]float32, w*h*Channels)
	labels := make([]int32, w*h)
	for i := 0; i < w*h; i++ {
		base := float32(40)
		labels[i] = 0
		if i >= w*h/2 {
			base = 180
			labels[i] = 1
		}
		for c := 0; c < Channels; c++ {
			img[i*Channels+c] = base + float32(rng.Intn(30))
		}
	}

	cfg := Config{Width: w, Height: h, MixtureCount: 2, GaussiansPerMixture: 2, TileSize: 8}
	m := New(cfg, img, labels)

	ctx := context.Background()
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Update(ctx); err != nil {
		t.Fatalf("Update: %v", err)
	}

	dst := make([]float32, 2*w*h)
	if err := m.DataTerm(ctx, dst); err != nil {
		t.Fatalf("DataTerm: %v", err)
	}

	for i := 0; i < w*h; i++ {
		sum := dst[i] + dst[w*h+i]
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Errorf("pixel %d probability sum = %f", i, sum)
		}
		if dst[i] < 0 || dst[w*h+i] < 0 {
			t.Errorf("pixel %d has negative probability", i)
		}
	}
}

func TestLabelMapMove(t *testing.T) {
	labels := []int32{0, 0, 0, Unlabeled, 1}
	lm := NewLabelMap(labels, 4)

	if lm.Count(0) != 3 || lm.Count(1) != 1 {
		t.Fatalf("initial counts wrong: %d, %d", lm.Count(0), lm.Count(1))
	}

	lm.Move([]uint32{0, 2}, 0, 2)

	if lm.Count(0) != 1 || lm.Count(2) != 2 {
		t.Errorf("counts after move: c0=%d c2=%d", lm.Count(0), lm.Count(2))
	}
	if lm.At(0) != 2 || lm.At(1) != 0 || lm.At(2) != 2 {
		t.Errorf("labels after move: %v", lm.Raw())
	}
	if lm.At(3) != Unlabeled {
		t.Errorf("unlabeled pixel changed: %d", lm.At(3))
	}
}

func TestCommonTermPairsWithinMixture(t *testing.T) {
	const w, h = 8, 4
	img := make([]float32, w*h*Channels)
	labels := make([]int32, w*h)
	for i := 0; i < w*h; i++ {
		base := float32(10)
		labels[i] = 0
		if i >= w*h/2 {
			base = 200
			labels[i] = 1
		}
		for c := 0; c < Channels; c++ {
			img[i*Channels+c] = base
		}
	}

	cfg := Config{Width: w, Height: h, MixtureCount: 2, GaussiansPerMixture: 1, TileSize: 4}
	m := New(cfg, img, labels)

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Single-component mixtures form singleton pairs, so the local
	// mixing weight is 1 and the common term reduces to the bare
	// Gaussian prefactor 1/sqrt(det).
	for c := 0; c < 2; c++ {
		cl := m.clusters[c]
		want := 1 / math.Sqrt(cl.Det)
		if math.Abs(cl.CommonTerm-want) > 1e-9*want {
			t.Errorf("cluster %d common term = %g, want %g", c, cl.CommonTerm, want)
		}
	}
}
