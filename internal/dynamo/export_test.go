package dynamo

func (s *ReportStore) SetMaxAttempts(n int) {
	s.maxAttempts = n
}
