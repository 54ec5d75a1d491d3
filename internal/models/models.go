package models

// All returns every model managed by migrations
func All() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&Enquiry{},
		&EnquiryNote{},
		&EnquiryNotification{},
		&AuditLog{},
		&SystemSetting{},
		&TicketSequence{},
	}
}
