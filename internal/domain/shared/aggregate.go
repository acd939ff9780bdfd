package shared

// BaseAggregateRoot extends BaseEntity with a version counter for
// optimistic locking. Repositories include the version in the UPDATE
// predicate; a stale version writes zero rows and surfaces as
// ErrConcurrencyConflict.
type BaseAggregateRoot struct {
	BaseEntity
	Version int `gorm:"not null;default:1"`
}

// IncrementVersion advances the lock version. Mutating operations call
// this so the subsequent save supersedes the version they loaded.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// NewBaseAggregateRoot issues a fresh identity at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}
