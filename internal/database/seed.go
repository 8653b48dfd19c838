package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedUsers creates a demo account per role plus a handful of faker-named
// delivery partners. Skipped when users already exist.
func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	password, err := bcrypt.GenerateFromPassword([]byte("mealtrail123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	f := faker.New()
	vehicleTypes := []string{"bike", "scooter", "car"}
	plates := []string{"TN09AB1234", "TN10CD5678", "TN22EF9012", "TN07GH3456"}

	users := []map[string]interface{}{
		{
			"id": uuid.New().String(), "email": "admin@mealtrail.dev",
			"password": string(password), "name": "Admin User", "role": "admin",
			"vehicle_type": nil, "vehicle_id": nil,
		},
		{
			"id": uuid.New().String(), "email": "owner@mealtrail.dev",
			"password": string(password), "name": f.Person().Name(), "role": "owner",
			"vehicle_type": nil, "vehicle_id": nil,
		},
		{
			"id": uuid.New().String(), "email": "customer@mealtrail.dev",
			"password": string(password), "name": f.Person().Name(), "role": "customer",
			"vehicle_type": nil, "vehicle_id": nil,
		},
	}

	for i := 0; i < 4; i++ {
		users = append(users, map[string]interface{}{
			"id":           uuid.New().String(),
			"email":        f.Internet().Email(),
			"password":     string(password),
			"name":         f.Person().Name(),
			"role":         "partner",
			"vehicle_type": vehicleTypes[i%len(vehicleTypes)],
			"vehicle_id":   plates[i],
		})
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, role, vehicle_type, vehicle_id)
			VALUES (:id, :email, :password, :name, :role, :vehicle_type, :vehicle_id)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	return nil
}

// SeedRestaurants creates a few Chennai restaurants owned by the demo owner.
func SeedRestaurants(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM restaurants"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Restaurants already seeded, skipping...")
		return nil
	}

	var ownerID string
	if err := db.Get(&ownerID, "SELECT id FROM users WHERE role = 'owner' LIMIT 1"); err != nil {
		return err
	}

	log.Println("🌱 Seeding restaurants...")

	restaurants := []map[string]interface{}{
		{"name": "Saravana Spice House", "address": "21 Anna Salai, Chennai", "latitude": 13.0604, "longitude": 80.2496},
		{"name": "Marina Tiffin Centre", "address": "4 Kamarajar Salai, Chennai", "latitude": 13.0500, "longitude": 80.2824},
		{"name": "Mylapore Dosa Corner", "address": "88 Luz Church Rd, Chennai", "latitude": 13.0368, "longitude": 80.2676},
	}

	for _, restaurant := range restaurants {
		restaurant["id"] = uuid.New().String()
		restaurant["owner_id"] = ownerID
		query := `
			INSERT INTO restaurants (id, owner_id, name, address, latitude, longitude)
			VALUES (:id, :owner_id, :name, :address, :latitude, :longitude)
		`
		if _, err := db.NamedExec(query, restaurant); err != nil {
			return err
		}
		log.Printf("  ✓ Created restaurant: %s", restaurant["name"])
	}

	return nil
}
