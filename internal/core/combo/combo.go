// Package combo 实现组合枚举（无重复 / 可重复）。
// 采用基于下标的迭代枚举，输出顺序与“首元素 + 其余元素”递归展开一致（下标字典序）。
package combo

import "gonum.org/v1/gonum/stat/combin"

// maxPrealloc 预分配上限，避免异常输入导致超大分配
const maxPrealloc = 1 << 16

// Combinations 枚举 pool 中所有 k 元子集
// 参数 pool: 候选池（元素顺序决定输出顺序）
// 参数 k: 组合大小
// 返回: C(n,k) 个组合；k=0 时返回一个空组合，k>n 或 k<0 时返回空列表
func Combinations[T any](pool []T, k int) [][]T {
	n := len(pool)
	if k < 0 || k > n {
		return [][]T{}
	}

	out := make([][]T, 0, capacity(n, k))
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}

	for {
		out = append(out, pick(pool, idx))

		// 找到最右侧仍可递增的位置
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// CombinationsWithRepetition 枚举 pool 中所有 k 元多重集（下标非递减）
// 返回: C(n+k-1,k) 个组合；k=0 时返回一个空组合，n=0 且 k>0 时返回空列表
func CombinationsWithRepetition[T any](pool []T, k int) [][]T {
	n := len(pool)
	if k < 0 || (n == 0 && k > 0) {
		return [][]T{}
	}

	out := make([][]T, 0, capacity(n+k-1, k))
	idx := make([]int, k)

	for {
		out = append(out, pick(pool, idx))

		i := k - 1
		for i >= 0 && idx[i] == n-1 {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[i]
		}
	}
}

// Count 返回无重复组合数 C(n,k)
func Count(n, k int) int {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	return combin.Binomial(n, k)
}

// CountWithRepetition 返回可重复组合数 C(n+k-1,k)
func CountWithRepetition(n, k int) int {
	if k == 0 {
		return 1
	}
	if n <= 0 || k < 0 {
		return 0
	}
	return combin.Binomial(n+k-1, k)
}

func capacity(n, k int) int {
	// n 较大时 Binomial 的中间乘积可能溢出，不做预分配
	if n > 40 {
		return 0
	}
	c := Count(n, k)
	if c > maxPrealloc {
		return maxPrealloc
	}
	return c
}

func pick[T any](pool []T, idx []int) []T {
	c := make([]T, len(idx))
	for i, j := range idx {
		c[i] = pool[j]
	}
	return c
}
