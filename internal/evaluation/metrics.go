package evaluation

// averagePrecision computes Average Precision over an ordered list of
// relevance flags: the mean of precision@i at each relevant position.
func averagePrecision(relevant []bool) float64 {
	hits := 0
	sum := 0.0
	for i, r := range relevant {
		if r {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(hits)
}

// supportRatio is the fraction of claims judged supported.
func supportRatio(supported []bool) float64 {
	if len(supported) == 0 {
		return 0
	}
	count := 0
	for _, s := range supported {
		if s {
			count++
		}
	}
	return float64(count) / float64(len(supported))
}

func meanScores(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
