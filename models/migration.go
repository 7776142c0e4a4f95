package models

import (
	"log"

	"github.com/lalantsika/lalantsika_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	// reports.geom needs PostGIS before AutoMigrate sees the column type.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		log.Fatal(err)
	}

	err := db.AutoMigrate(
		&Sex{}, &UserType{},
		&Company{}, &User{},
		&Status{}, &Report{}, &StatusHistory{},
		&Settings{},
		&LoginAttempt{}, &SyncLease{},
	)
	if err != nil {
		log.Fatal(err)
	}

	seedLookups()
}

// seedLookups makes sure the reference tables the mobile client relies
// on exist; FirstOrCreate keeps reruns idempotent.
func seedLookups() {
	db := config.GetDB()

	for _, label := range []string{"male", "female"} {
		var sex Sex
		if err := db.Where(Sex{Label: label}).FirstOrCreate(&sex).Error; err != nil {
			log.Fatal(err)
		}
	}
	for _, label := range []string{UserTypeCitizen, UserTypeManager} {
		var userType UserType
		if err := db.Where(UserType{Label: label}).FirstOrCreate(&userType).Error; err != nil {
			log.Fatal(err)
		}
	}
	for _, label := range []string{"new", "in progress", "resolved"} {
		var status Status
		if err := db.Where(Status{Label: label}).FirstOrCreate(&status).Error; err != nil {
			log.Fatal(err)
		}
	}
}
