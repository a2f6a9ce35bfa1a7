package rerank

// parseOrder permissively extracts a candidate ordering from free-form model
// output: every integer in the text is taken in order of appearance,
// out-of-range and duplicate indices are dropped, and any index the model
// forgot is appended in original position order. A completely malformed
// response therefore degrades to the identity order.
func parseOrder(s string, n int) []int {
	order := make([]int, 0, n)
	seen := make([]bool, n)

	value, inNumber := 0, false
	flush := func() {
		if inNumber && value < n && !seen[value] {
			order = append(order, value)
			seen[value] = true
		}
		value, inNumber = 0, false
	}

	for _, r := range s {
		if r >= '0' && r <= '9' {
			if value <= n {
				value = value*10 + int(r-'0')
			}
			inNumber = true
			continue
		}
		flush()
	}
	flush()

	for i := 0; i < n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}
