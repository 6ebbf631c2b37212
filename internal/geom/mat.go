package geom

// Mat33 is a 3×3 matrix in row-major order.
type Mat33 [3][3]float64

// Identity33 returns the 3×3 identity matrix.
func Identity33() Mat33 {
	return Mat33{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Transpose returns the element-wise transpose of m. For an orthonormal
// rotation matrix this is the inverse rotation.
func (m Mat33) Transpose() Mat33 {
	var t Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// MulVec returns m · v.
func (m Mat33) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns the matrix product m · n.
func (m Mat33) Mul(n Mat33) Mat33 {
	var p Mat33
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[i][k] * n[k][j]
			}
			p[i][j] = sum
		}
	}
	return p
}
