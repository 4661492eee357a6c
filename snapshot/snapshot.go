// Package snapshot encodes fitted mixture models into a compact,
// self-describing binary format so they can be stored and re-applied to new
// images without refitting.
//
// Layout: a fixed header {magic, version, compression, mixture shape}
// followed by one block {uncompressedSize, compressedSize, payload}. A
// compressedSize of 0 marks a raw payload (used when compression does not
// pay off). The payload is the cluster records as little-endian float64s.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Compression selects the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload raw.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast with a modest ratio; the right default for
	// snapshots that are re-read often.
	CompressionLZ4 Compression = 1
	// CompressionZSTD trades speed for a better ratio; good for archived
	// models.
	CompressionZSTD Compression = 2
)

const (
	magic         = "GMSN"
	formatVersion = 1

	headerSize      = 4 + 1 + 1 + 2 + 2 // magic, version, compression, mixtures, gaussians
	blockHeaderSize = 8                 // uncompressedSize, compressedSize

	// scalarsPerCluster: count, mean(3), cov(6), det, inv(6), commonTerm.
	scalarsPerCluster = 18
	clusterSize       = scalarsPerCluster * 8
)

// ErrMalformedSnapshot wraps all decode failures.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Cluster is one Gaussian component's finalized parameters.
type Cluster struct {
	Count      float64
	Mean       [3]float64
	Cov        [6]float64
	Det        float64
	Inv        [6]float64
	CommonTerm float64
}

// Model is the serializable view of a fitted mixture model.
type Model struct {
	MixtureCount        int
	GaussiansPerMixture int
	Clusters            []Cluster
}

// Encode serializes the model with the given payload compression.
func Encode(m *Model, compression Compression) ([]byte, error) {
	want := m.MixtureCount * m.GaussiansPerMixture
	if len(m.Clusters) != want {
		return nil, fmt.Errorf("cluster count %d does not match %dx%d shape",
			len(m.Clusters), m.MixtureCount, m.GaussiansPerMixture)
	}
	if m.MixtureCount < 1 || m.MixtureCount > 0xFFFF || m.GaussiansPerMixture < 1 || m.GaussiansPerMixture > 0xFFFF {
		return nil, fmt.Errorf("mixture shape %dx%d out of range", m.MixtureCount, m.GaussiansPerMixture)
	}

	payload := make([]byte, 0, len(m.Clusters)*clusterSize)
	for i := range m.Clusters {
		payload = appendCluster(payload, &m.Clusters[i])
	}

	block, err := compressBlock(payload, compression)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize, headerSize+len(block))
	copy(out, magic)
	out[4] = formatVersion
	out[5] = byte(compression)
	binary.LittleEndian.PutUint16(out[6:], uint16(m.MixtureCount))
	binary.LittleEndian.PutUint16(out[8:], uint16(m.GaussiansPerMixture))
	return append(out, block...), nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*Model, error) {
	if len(data) < headerSize+blockHeaderSize {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedSnapshot)
	}
	if string(data[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedSnapshot)
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedSnapshot, data[4])
	}
	compression := Compression(data[5])
	mixtures := int(binary.LittleEndian.Uint16(data[6:]))
	gaussians := int(binary.LittleEndian.Uint16(data[8:]))

	payload, err := decompressBlock(data[headerSize:], compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	want := mixtures * gaussians * clusterSize
	if len(payload) != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrMalformedSnapshot, len(payload), want)
	}

	m := &Model{
		MixtureCount:        mixtures,
		GaussiansPerMixture: gaussians,
		Clusters:            make([]Cluster, mixtures*gaussians),
	}
	for i := range m.Clusters {
		readCluster(payload[i*clusterSize:], &m.Clusters[i])
	}
	return m, nil
}

func appendCluster(b []byte, c *Cluster) []byte {
	b = appendFloat(b, c.Count)
	for _, v := range c.Mean {
		b = appendFloat(b, v)
	}
	for _, v := range c.Cov {
		b = appendFloat(b, v)
	}
	b = appendFloat(b, c.Det)
	for _, v := range c.Inv {
		b = appendFloat(b, v)
	}
	return appendFloat(b, c.CommonTerm)
}

func readCluster(b []byte, c *Cluster) {
	next := func() float64 {
		v := binary.LittleEndian.Uint64(b)
		b = b[8:]
		return math.Float64frombits(v)
	}

	c.Count = next()
	for i := range c.Mean {
		c.Mean[i] = next()
	}
	for i := range c.Cov {
		c.Cov[i] = next()
	}
	c.Det = next()
	for i := range c.Inv {
		c.Inv[i] = next()
	}
	c.CommonTerm = next()
}

func appendFloat(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}
