package models

import "github.com/mjwconsult/accountsync/config"

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&AccountConnector{},
		&AccountInvoice{},
		&AccountContact{},
		&AccountSyncRun{},
		&AccountSyncError{},
		&Contact{},
		&Contribution{},
		&ContributionLineItem{},
		&ContributionPayment{},
	)
	if err != nil {
		panic(err)
	}
}
