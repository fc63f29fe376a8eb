package acoustic

// Daubechies-4 analysis filters (8 taps).
var (
	db4Lo = [8]float64{
		-0.010597401784997278,
		0.032883011666982945,
		0.030841381835986965,
		-0.18703481171888114,
		-0.02798376941698385,
		0.6308807679295904,
		0.7148465705525415,
		0.23037781330885523,
	}
	db4Hi = [8]float64{
		-0.23037781330885523,
		0.7148465705525415,
		-0.6308807679295904,
		-0.02798376941698385,
		0.18703481171888114,
		0.030841381835986965,
		-0.032883011666982945,
		-0.010597401784997278,
	}
)

// dwtStep performs one level of the db4 transform with half-sample
// symmetric extension, returning approximation and detail coefficients of
// length floor((n+7)/2).
func dwtStep(x []float64) (approx, detail []float64) {
	n := len(x)
	out := (n + len(db4Lo) - 1) / 2
	approx = make([]float64, out)
	detail = make([]float64, out)
	for o := 0; o < out; o++ {
		i := 2*o + 1
		var a, d float64
		for j := range db4Lo {
			v := x[reflect(i-j, n)]
			a += db4Lo[j] * v
			d += db4Hi[j] * v
		}
		approx[o] = a
		detail[o] = d
	}
	return approx, detail
}

// reflect maps k into [0, n) by mirroring about the signal edges, repeating
// as often as needed for signals shorter than the filter.
func reflect(k, n int) int {
	period := 2 * n
	k %= period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - 1 - k
	}
	return k
}

// wavedec decomposes x into levels of detail coefficients. The result is
// ordered coarsest first: [cA_level, cD_level, ..., cD1].
func wavedec(x []float64, levels int) [][]float64 {
	details := make([][]float64, 0, levels)
	cur := x
	for l := 0; l < levels && len(cur) > 0; l++ {
		a, d := dwtStep(cur)
		details = append(details, d)
		cur = a
	}
	out := make([][]float64, 0, len(details)+1)
	out = append(out, cur)
	for i := len(details) - 1; i >= 0; i-- {
		out = append(out, details[i])
	}
	return out
}

func energy(c []float64) float64 {
	var e float64
	for _, v := range c {
		e += v * v
	}
	return e
}
