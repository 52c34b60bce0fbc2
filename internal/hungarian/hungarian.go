// Package hungarian solves the rectangular linear assignment problem with
// the Kuhn–Munkres algorithm in its Jonker–Volgenant potentials form. It
// runs in O(n³) time on the padded square problem, which keeps the
// per-frame association step deterministic even when every track competes
// for every detection.
//
// The solver works on a dense row-major cost matrix. Entries at or above
// the forbidden sentinel never produce an assignment; rows that cannot be
// assigned a real column are reported with -1.
package hungarian

import "math"

// forbidden stands in for infinity inside the cost matrix. Padding cells
// and caller-marked impossible pairs use it so the augmenting path never
// settles on them.
const forbidden = 1e18

// Assign solves the assignment problem for a rows×cols cost matrix laid
// out row-major in costs. It returns one column index per row, or -1 when
// the row is unassigned (more rows than columns, or only forbidden costs
// left). Zero is an ordinary column index, never a sentinel.
func Assign(costs []float64, rows, cols int) []int {
	if rows == 0 {
		return nil
	}
	result := make([]int, rows)
	if cols == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	// Pad to square so the potentials method sees a balanced problem.
	dim := rows
	if cols > dim {
		dim = cols
	}
	c := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			if i < rows && j < cols {
				c[i*dim+j] = costs[i*cols+j]
			} else {
				c[i*dim+j] = forbidden
			}
		}
	}

	// Kuhn–Munkres with row/column potentials, 1-indexed internally for
	// cleaner index arithmetic. Column 0 is the virtual column.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)   // p[j] = row assigned to column j
	way := make([]int, dim+1) // way[j] = previous column in augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[(i0-1)*dim+(j-1)] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		// Augment along the path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim padding and reject forbidden assignments.
	for i := 0; i < rows; i++ {
		col := rowAssign[i]
		if col < 0 || col >= cols || costs[i*cols+col] >= forbidden {
			result[i] = -1
		} else {
			result[i] = col
		}
	}

	return result
}

// Solver adapts Assign to the association layer's solver contract.
type Solver struct{}

// Solve returns one column per row, -1 for unassigned rows.
func (Solver) Solve(costs []float64, rows, cols int) []int {
	return Assign(costs, rows, cols)
}
