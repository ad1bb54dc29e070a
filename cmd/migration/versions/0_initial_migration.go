package versions

import (
	"log"
	"playerlab/platform/schema"

	"gorm.io/gorm"
)

func Migration_0_initial_migration(txn *gorm.DB) error {
	log.Println("creating initial platform schema")

	if err := txn.Migrator().AutoMigrate(schema.AllModels()...); err != nil {
		return err
	}

	log.Println("initial platform schema created")

	return nil
}
