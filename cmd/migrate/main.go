package main

import (
	"log"

	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	log.Println("migration complete")
}
