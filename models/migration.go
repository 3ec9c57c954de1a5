package models

import (
	"log"

	"github.com/mmdatafocus/research_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &Executive{}, &Office{},
		&ResearchHistory{},
		&ResearchRun{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
