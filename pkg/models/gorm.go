package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&User{},
		&PurchaseRequest{},
		&NotificationLog{},
	}
}
