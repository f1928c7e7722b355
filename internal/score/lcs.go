package score

// LCSLength returns the length of the longest common subsequence of a and b,
// treated as sequences of Unicode code points (each Chinese character is one
// unit). Returns 0 when either input is empty.
//
// This is the exact dynamic-programming algorithm, O(m·n) time with two
// rolling rows of state. Exactness matters: the scorer's order component is
// defined in terms of the true LCS, and the deterministic scoring tests
// depend on it. No approximation is acceptable at the few-hundred-character
// phrase lengths this package handles.
func LCSLength(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
