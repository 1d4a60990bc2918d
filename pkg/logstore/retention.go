package logstore

// RetentionSummary accounts for one retention pass (spec.md §8
// invariant 8: retained + dropped_by_age + dropped_by_limit == before).
type RetentionSummary struct {
	Before         uint64
	Retained       uint64
	DroppedByAge   uint64
	DroppedByLimit uint64
}

// DroppedTotal is DroppedByAge + DroppedByLimit.
func (r RetentionSummary) DroppedTotal() uint64 {
	return r.DroppedByAge + r.DroppedByLimit
}

// ApplyRetention evicts entries older than cfg.MaxAgeSecs (if set) and
// then, among the survivors, keeps only the newest cfg.MaxEntries.
// MaxEntries == 0 drops every entry (logging disabled). An already
// within-limits, no-age-filter log is a fast-path no-op.
func (ls *Store) ApplyRetention(now int64) (RetentionSummary, error) {
	originalLen, err := ls.Len()
	if err != nil {
		return RetentionSummary{}, err
	}

	if ls.cfg.MaxEntries == 0 {
		if originalLen == 0 {
			return RetentionSummary{}, nil
		}
		if err := ls.rewrite(nil); err != nil {
			return RetentionSummary{}, err
		}
		return RetentionSummary{Before: originalLen, DroppedByLimit: originalLen}, nil
	}

	if originalLen == 0 {
		return RetentionSummary{}, nil
	}

	if ls.cfg.MaxAgeSecs == nil && originalLen <= ls.cfg.MaxEntries {
		return RetentionSummary{Before: originalLen, Retained: originalLen}, nil
	}

	all, err := ls.Snapshot()
	if err != nil {
		return RetentionSummary{}, err
	}

	var eligible []Entry
	for _, e := range all {
		if ls.cfg.MaxAgeSecs != nil {
			age := now - e.CreatedAt
			if age < 0 {
				age = 0
			}
			if age > *ls.cfg.MaxAgeSecs {
				continue
			}
		}
		eligible = append(eligible, e)
	}

	eligibleCount := uint64(len(eligible))
	retained := eligible
	if uint64(len(retained)) > ls.cfg.MaxEntries {
		retained = retained[uint64(len(retained))-ls.cfg.MaxEntries:]
	}
	retainedLen := uint64(len(retained))

	var droppedByAge uint64
	if ls.cfg.MaxAgeSecs != nil {
		droppedByAge = originalLen - eligibleCount
	}
	droppedByLimit := eligibleCount - retainedLen

	summary := RetentionSummary{
		Before:         originalLen,
		Retained:       retainedLen,
		DroppedByAge:   droppedByAge,
		DroppedByLimit: droppedByLimit,
	}

	if droppedByAge == 0 && droppedByLimit == 0 {
		return summary, nil
	}

	if err := ls.rewrite(retained); err != nil {
		return RetentionSummary{}, err
	}
	return summary, nil
}
