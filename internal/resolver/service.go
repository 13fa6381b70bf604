package resolver

import (
	"context"

	"opshub/internal/logger"
)

// Service runs the daily check: detect, resolve, report.
type Service struct {
	detector *Detector
	resolver *Resolver
	reporter *Reporter
}

func NewService(api API, rules Rules, apply bool, reporter *Reporter, log *logger.Logger) *Service {
	return &Service{
		detector: NewDetector(api, rules, log),
		resolver: NewResolver(api, apply, log),
		reporter: reporter,
	}
}

func (s *Service) Run(ctx context.Context) (*Report, error) {
	scan, err := s.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}
	actions := s.resolver.Resolve(ctx, scan.Findings)
	return s.reporter.Report(ctx, scan, actions, !s.resolver.Apply())
}
