package curation

// AllocateLimits returns a copy of quotas with every Limit resolved.
//
// Quotas with an explicit Limit keep it. The others share overallLimit in
// proportion to their Weight (a weight < 1 counts as 1), rounding down; the
// remainder goes to the first derived quota in definition order. With equal
// weights this is floor(overallLimit / n), e.g. 25 over 3 -> 9, 8, 8.
func AllocateLimits(quotas []CategoryQuota, overallLimit int) []CategoryQuota {
	out := make([]CategoryQuota, len(quotas))
	copy(out, quotas)
	if overallLimit <= 0 {
		for i := range out {
			if out[i].Limit <= 0 {
				out[i].Limit = 0
			}
		}
		return out
	}

	totalWeight := 0
	first := -1
	for i, q := range out {
		if q.Limit > 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		totalWeight += weightOf(q)
	}
	if first < 0 {
		return out
	}

	assigned := 0
	for i, q := range quotas {
		if q.Limit > 0 {
			continue
		}
		out[i].Limit = overallLimit * weightOf(q) / totalWeight
		assigned += out[i].Limit
	}
	out[first].Limit += overallLimit - assigned
	return out
}

func weightOf(q CategoryQuota) int {
	if q.Weight < 1 {
		return 1
	}
	return q.Weight
}
