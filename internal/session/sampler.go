package session

// ensureSamplerLocked rebuilds the sampler pipeline when the requested
// temperature differs from the one the active pipeline was built with. The
// pipeline exposes no in-place parameter mutation, so a change means
// releasing the old instance and building a fresh temperature stage plus
// default-seeded selection stage. mu must be held and a model loaded.
func (s *Session) ensureSamplerLocked(temperature float32) {
	if s.sampler != nil && s.temperature == temperature {
		return
	}
	if s.sampler != nil {
		s.sampler.Free()
		s.sampler = nil
	}
	s.sampler = s.model.NewSampler(temperature, s.cfg.Seed)
	s.temperature = temperature
}
