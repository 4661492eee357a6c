// Package gmmseg computes per-pixel soft segmentation probabilities by
// fitting one Gaussian mixture model per labeled group directly on image
// pixels. It is the numeric core of an interactive segmentation pipeline:
// given an image and a sparse hard labeling, it bootstraps a K-cluster
// model per group by hierarchical binary splitting, refines it with one
// EM-style update pass, and evaluates the normalized mixture densities at
// every pixel.
//
// # Quick Start
//
// One-shot:
//
//	ctx := context.Background()
//	probs, err := gmmseg.ComputeMixtureProbabilities(ctx, image, labels,
//	    width, height, 2, 4)
//
// Staged, for callers that interleave with an outer graph-cut loop:
//
//	model, _ := gmmseg.NewModel(image, labels, width, height, 2, 4)
//	_ = model.Initialize(ctx)
//	_ = model.Update(ctx)
//	probs := make([]float32, 2*width*height)
//	_ = model.DataTerm(ctx, probs)
//
// Images are dense row-major 3-channel float32 buffers with values in
// [0, 1] (the network output domain); they are converted internally to a
// fixed 0-255 integer domain for accumulation stability. Labels are one
// signed int32 per pixel in [-1, mixtureCount-1], where -1 excludes the
// pixel from every cluster.
//
// Fitted models can be exported as compressed snapshots (see the snapshot
// package) and published to local disk, S3 or MinIO (see modelstore).
package gmmseg
