// Package database embed dosyası: migration SQL dosyalarını binary'ye gömer.
package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrations, gömülü migrations/ dizinini kök olarak döner.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// Sadece embed pattern'i ile dizin adı uyuşmazsa olur; derleme zamanı hatası sayılır.
		panic(err)
	}
	return sub
}
