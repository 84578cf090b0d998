package models

import (
	"log"

	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Ingredient{},
		&IngredientImport{}, &Batch{},
		&IngredientExport{}, &ExportItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
