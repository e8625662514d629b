package stats

// ClassScores holds precision, recall and F1 for one class.
type ClassScores struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Averages holds macro, micro and support-weighted averages.
type Averages struct {
	Macro    ClassScores
	Micro    ClassScores
	Weighted ClassScores
}

// ratio divides, treating a zero denominator as a zero result.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func f1(p, r float64) float64 { return ratio(2*p*r, p+r) }

// PrecisionRecallF1 scores every class of a confusion table whose rows are
// the reference class and columns the predicted class. Zero divisions are
// reported as 0 rather than failing.
func PrecisionRecallF1(table [][]int) ([]ClassScores, Averages) {
	k := len(table)
	rowSums := make([]int, k)
	colSums := make([]int, k)
	var total, trace int
	for i := range table {
		for j, c := range table[i] {
			rowSums[i] += c
			colSums[j] += c
			total += c
		}
		trace += table[i][i]
	}

	classes := make([]ClassScores, k)
	var avg Averages
	for i := range k {
		tp := float64(table[i][i])
		p := ratio(tp, float64(colSums[i]))
		r := ratio(tp, float64(rowSums[i]))
		cs := ClassScores{Precision: p, Recall: r, F1: f1(p, r), Support: rowSums[i]}
		classes[i] = cs

		avg.Macro.Precision += p
		avg.Macro.Recall += r
		avg.Macro.F1 += cs.F1

		w := float64(rowSums[i])
		avg.Weighted.Precision += p * w
		avg.Weighted.Recall += r * w
		avg.Weighted.F1 += cs.F1 * w
	}
	avg.Weighted.Precision = ratio(avg.Weighted.Precision, float64(total))
	avg.Weighted.Recall = ratio(avg.Weighted.Recall, float64(total))
	avg.Weighted.F1 = ratio(avg.Weighted.F1, float64(total))

	avg.Macro.Precision /= float64(k)
	avg.Macro.Recall /= float64(k)
	avg.Macro.F1 /= float64(k)

	// With single-label data micro precision, recall and F1 all equal accuracy.
	acc := ratio(float64(trace), float64(total))
	avg.Micro = ClassScores{Precision: acc, Recall: acc, F1: acc, Support: total}
	avg.Macro.Support = total
	avg.Weighted.Support = total

	return classes, avg
}
