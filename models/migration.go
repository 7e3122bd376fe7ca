package models

import (
	"log"

	"github.com/forecourtlabs/pos_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Store{}, &Device{},
		&RawSubmission{},
		&Shift{}, &DepartmentSale{},
		&Alert{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
