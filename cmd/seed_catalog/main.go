// Command seed_catalog fills a database with a sample catalog of public
// domain books, useful for local development and demos.
// Usage: go run cmd/seed_catalog/main.go [-db path/to/libraria.db]
package main

import (
	"flag"
	"log"

	"github.com/okulov/libraria/internal/config"
	"github.com/okulov/libraria/internal/database"
	"github.com/okulov/libraria/internal/database/books"
	"github.com/okulov/libraria/internal/entities"
)

func main() {
	dbPath := flag.String("db", config.DefaultDatabasePath, "path to the database file")
	flag.Parse()

	log.Printf("Seeding catalog at %s...", *dbPath)

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	repo := books.NewRepository(db.DB)

	seeded := 0
	for _, book := range sampleBooks() {
		b := book
		if err := repo.Create(&b); err != nil {
			log.Printf("Skipping %s: %v", b.Title, err)
			continue
		}
		log.Printf("Added: %s by %s (%d copies)", b.Title, b.Author, b.TotalCopies)
		seeded++
	}

	log.Printf("Catalog seeded with %d books", seeded)
}

func sampleBooks() []entities.Book {
	return []entities.Book{
		{
			Title:         "Meditations",
			Author:        "Marcus Aurelius",
			ISBN:          "978-0140449334",
			PublishedYear: 1900,
			Category:      "Non-Fiction",
			Description:   "Personal writings of the Roman emperor on Stoic philosophy.",
			TotalCopies:   3,
		},
		{
			Title:         "Pride and Prejudice",
			Author:        "Jane Austen",
			ISBN:          "978-0141439518",
			PublishedYear: 1813,
			Category:      "Fiction",
			Description:   "A novel of manners set in Georgian England.",
			TotalCopies:   5,
		},
		{
			Title:         "The Adventures of Sherlock Holmes",
			Author:        "Arthur Conan Doyle",
			ISBN:          "978-0486474915",
			PublishedYear: 1892,
			Category:      "Mystery",
			Description:   "Twelve short stories featuring the consulting detective.",
			TotalCopies:   4,
		},
		{
			Title:         "On the Origin of Species",
			Author:        "Charles Darwin",
			ISBN:          "978-0451529060",
			PublishedYear: 1859,
			Category:      "Science",
			Description:   "The foundation of evolutionary biology.",
			TotalCopies:   2,
		},
		{
			Title:         "The Art of War",
			Author:        "Sun Tzu",
			ISBN:          "978-1599869773",
			PublishedYear: 1910,
			Category:      "History",
			TotalCopies:   2,
		},
		{
			Title:         "Frankenstein",
			Author:        "Mary Shelley",
			ISBN:          "978-0486282114",
			PublishedYear: 1818,
			Category:      "Fiction",
			Description:   "A scientist's experiment creates a sapient creature.",
			TotalCopies:   3,
		},
	}
}
