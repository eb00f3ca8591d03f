package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts *AccountRepository
	Samples  *SampleRepository
	Alerts   *AlertRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(exec),
		Samples:  NewSampleRepository(exec),
		Alerts:   NewAlertRepository(exec),
	}
}
