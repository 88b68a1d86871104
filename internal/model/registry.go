package model

// AllModels returns every model the migrator manages.
// New tables only need to be added here, not in main.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&PaymentIntent{},
		&ChainCursor{},
		&Membership{},
		&MembershipEvent{},
		&Commission{},
		&PaymentRecord{},
		&OutboxMessage{},
	}
}
