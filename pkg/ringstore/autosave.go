package ringstore

// autoSave runs after a failed load. Depending on the policy it makes exactly
// one save of the in-memory object to put a valid file back into the ring.
//
// It reports whether the load should be turned into a success. It never
// touches lastErr and never returns an error: a failed auto-save only shows
// up in the sink and metrics.
func (s *Storage[T]) autoSave(out *loadOutcome[T]) bool {
	policy := s.cfg.AutoSave

	trigger := policy.Has(AutoSaveOnAnyFailedLoad) ||
		(policy.Has(AutoSaveOnNoFilesFound) && out.existing == 0)
	if !trigger {
		return false
	}

	res := s.save(s.object)

	autoSaveTotal.WithLabelValues(s.cfg.BaseName, resultLabel(res.OK)).Inc()

	if !res.OK {
		s.cfg.Sink.Issue("auto-save failed: " + res.Err.Error())

		return false
	}

	s.cfg.Sink.Success(fmtSaved("auto-saved", res))

	return policy.Has(AutoSaveSuccessMakesLoadSucceed)
}
