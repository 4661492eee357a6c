// Package mat3 provides closed-form linear algebra for symmetric 3x3
// matrices stored in packed upper-triangular form.
//
// This is an internal package - external users should use the gmmseg package.
package mat3

// Packed upper-triangular indices of a symmetric 3x3 matrix.
const (
	XX = 0
	XY = 1
	XZ = 2
	YY = 3
	YZ = 4
	ZZ = 5
)

// Sym is a symmetric 3x3 matrix packed as [xx, xy, xz, yy, yz, zz].
type Sym [6]float64

// Det computes the determinant via cofactor expansion along the first row.
func (s Sym) Det() float64 {
	return s[XX]*(s[YY]*s[ZZ]-s[YZ]*s[YZ]) -
		s[XY]*(s[XY]*s[ZZ]-s[YZ]*s[XZ]) +
		s[XZ]*(s[XY]*s[YZ]-s[YY]*s[XZ])
}

// Inverse computes the inverse from cofactor/determinant ratios.
// If det <= 0 the matrix is degenerate (empty or collapsed cluster) and the
// zero matrix is returned instead.
func (s Sym) Inverse(det float64) Sym {
	if det <= 0 {
		return Sym{}
	}
	inv := 1.0 / det
	return Sym{
		XX: (s[YY]*s[ZZ] - s[YZ]*s[YZ]) * inv,
		XY: (s[XZ]*s[YZ] - s[XY]*s[ZZ]) * inv,
		XZ: (s[XY]*s[YZ] - s[XZ]*s[YY]) * inv,
		YY: (s[XX]*s[ZZ] - s[XZ]*s[XZ]) * inv,
		YZ: (s[XY]*s[XZ] - s[XX]*s[YZ]) * inv,
		ZZ: (s[XX]*s[YY] - s[XY]*s[XY]) * inv,
	}
}

// QuadForm evaluates v' * S * v using the 6 unique entries.
func (s Sym) QuadForm(v [3]float64) float64 {
	return v[0]*v[0]*s[XX] + v[1]*v[1]*s[YY] + v[2]*v[2]*s[ZZ] +
		2*(v[0]*v[1]*s[XY]+v[0]*v[2]*s[XZ]+v[1]*v[2]*s[YZ])
}

// MulVec computes S * v.
func (s Sym) MulVec(v [3]float64) [3]float64 {
	return [3]float64{
		s[XX]*v[0] + s[XY]*v[1] + s[XZ]*v[2],
		s[XY]*v[0] + s[YY]*v[1] + s[YZ]*v[2],
		s[XZ]*v[0] + s[YZ]*v[1] + s[ZZ]*v[2],
	}
}

// Trace returns the sum of the diagonal entries.
func (s Sym) Trace() float64 {
	return s[XX] + s[YY] + s[ZZ]
}

// Dot is the vector dot product.
func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Cross is the vector cross product.
func Cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
