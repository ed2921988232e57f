package funnel

// interactionTier maps an input type to its interaction-cost tier. The
// second return is false for unknown types; validated callers may ignore
// it.
func interactionTier(t InputType) (int, bool) {
	switch t {
	case InputCheckbox, InputRadio:
		return 1, true
	case InputDropdown, InputMedia:
		return 2, true
	case InputSlider, InputDate, InputShortText:
		return 3, true
	case InputSearch, InputLongText:
		return 4, true
	case InputFileUpload:
		return 5, true
	}
	return 0, false
}

// sourceMultiplier scales entry motivation by acquisition channel,
// ranked by typical visitor intent.
func sourceMultiplier(s TrafficSource) (float64, bool) {
	switch s {
	case SourceDirect:
		return 1.00, true
	case SourceOrganicSearch:
		return 1.15, true
	case SourcePaidSearch:
		return 1.30, true
	case SourceSocial:
		return 0.90, true
	case SourceEmail:
		return 1.40, true
	case SourceReferral:
		return 1.10, true
	}
	return 0, false
}

// fatigueCoefficients selects the streak weight and boost relief for a
// funnel of n steps: short funnels punish high-complexity streaks less
// and long funnels more.
func fatigueCoefficients(n int) (beta, gammaBoost float64) {
	switch {
	case n <= 6:
		return 0.30, 0.20
	case n <= 12:
		return 0.40, 0.25
	default:
		return 0.50, 0.30
	}
}
