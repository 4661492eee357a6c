package mat3

import "math"

// MaxEigen computes the largest eigenvalue of a symmetric 3x3 matrix and a
// unit eigenvector for it, using the trigonometric (Cardano) solution of the
// characteristic cubic. The matrix is scaled by its largest diagonal entry
// first so the cubic is solved near unit magnitude.
//
// For a zero or negative-diagonal matrix (degenerate cluster) it returns
// eigenvalue 0 and the x axis.
func MaxEigen(m Sym) (float64, [3]float64) {
	scale := m[XX]
	if m[YY] > scale {
		scale = m[YY]
	}
	if m[ZZ] > scale {
		scale = m[ZZ]
	}
	if scale <= 0 {
		return 0, [3]float64{1, 0, 0}
	}

	var a Sym
	inv := 1.0 / scale
	for i := range m {
		a[i] = m[i] * inv
	}

	offSq := a[XY]*a[XY] + a[XZ]*a[XZ] + a[YZ]*a[YZ]
	if offSq == 0 {
		// Already diagonal: the largest diagonal entry is the answer.
		val, axis := a[XX], 0
		if a[YY] > val {
			val, axis = a[YY], 1
		}
		if a[ZZ] > val {
			val, axis = a[ZZ], 2
		}
		var vec [3]float64
		vec[axis] = 1
		return val * scale, vec
	}

	// Largest root of the characteristic cubic via the trigonometric
	// substitution, valid for real symmetric matrices.
	q := a.Trace() / 3
	dx, dy, dz := a[XX]-q, a[YY]-q, a[ZZ]-q
	p := math.Sqrt((dx*dx + dy*dy + dz*dz + 2*offSq) / 6)

	var b Sym
	pinv := 1.0 / p
	b[XX], b[YY], b[ZZ] = dx*pinv, dy*pinv, dz*pinv
	b[XY], b[XZ], b[YZ] = a[XY]*pinv, a[XZ]*pinv, a[YZ]*pinv

	r := b.Det() / 2
	if r < -1 {
		r = -1
	} else if r > 1 {
		r = 1
	}
	phi := math.Acos(r) / 3
	lambda := q + 2*p*math.Cos(phi)

	vec := eigenVector(a, lambda)
	return lambda * scale, vec
}

// eigenVector recovers an eigenvector for lambda as the cross product of two
// rows of (M - lambda*I). At the true eigenvalue rank(M - lambda*I) <= 2, so
// at least one pair of rows has a nonzero cross product; the largest of the
// three candidates is the numerically safest.
func eigenVector(m Sym, lambda float64) [3]float64 {
	r0 := [3]float64{m[XX] - lambda, m[XY], m[XZ]}
	r1 := [3]float64{m[XY], m[YY] - lambda, m[YZ]}
	r2 := [3]float64{m[XZ], m[YZ], m[ZZ] - lambda}

	best := Cross(r0, r1)
	bestSq := Dot(best, best)
	if c := Cross(r0, r2); Dot(c, c) > bestSq {
		best, bestSq = c, Dot(c, c)
	}
	if c := Cross(r1, r2); Dot(c, c) > bestSq {
		best, bestSq = c, Dot(c, c)
	}

	if bestSq == 0 {
		// lambda has multiplicity 3 (scaled identity): any direction works.
		return [3]float64{1, 0, 0}
	}

	n := 1.0 / math.Sqrt(bestSq)
	return [3]float64{best[0] * n, best[1] * n, best[2] * n}
}
