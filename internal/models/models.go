package models

// All lists every table owned by the application, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Business{},
		&Integration{},
		&Product{},
		&Order{},
		&Contact{},
		&Campaign{},
		&ChatTranscript{},
		&EmailMessage{},
		&MerchantProductStatus{},
		&Invoice{},
		&SyncRun{},
		&Issue{},
	}
}
