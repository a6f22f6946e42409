package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/armanet/internal/tensor"
)

// MatMul multiplies a [M,K] by b [K,N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D operands, got %v and %v", as, bs))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}
	m, k, n := as[0], as[1], bs[1]
	out := cpu.alloc("matmul", tensor.Shape{m, n}, tensor.Float32)
	gemm(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return out
}

// The conv and matmul kernels share these three products. Each accumulates
// into c (beta = 1) and runs on gonum's float32 BLAS.

// gemm accumulates a[m,k] @ b[k,n] into c[m,n].
func gemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, general(m, k, a), general(k, n, b), 1, general(m, n, c))
}

// gemmTransA accumulates a[k,m]^T @ b[k,n] into c[m,n].
func gemmTransA(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.Trans, blas.NoTrans, 1, general(k, m, a), general(k, n, b), 1, general(m, n, c))
}

// gemmTransB accumulates a[m,k] @ b[n,k]^T into c[m,n].
func gemmTransB(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, general(m, k, a), general(n, k, b), 1, general(m, n, c))
}

// general views row-major data as a rows x cols matrix.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: max(cols, 1), Data: data}
}
