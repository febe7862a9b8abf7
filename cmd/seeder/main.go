package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/hearthware/homeboard/internal/config"
	"github.com/hearthware/homeboard/internal/database"
	"github.com/hearthware/homeboard/internal/models"
)

// Seeds a demo household: one user, a starter pantry and a couple of recipes.
// Useful for local development and manual API testing.

func main() {
	email := flag.String("email", "demo@homeboard.local", "Email for the demo user")
	password := flag.String("password", "homeboard-demo", "Password for the demo user")
	dryRun := flag.Bool("dry-run", false, "Preview what would be created without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *dryRun {
		log.Printf("Dry run: would create user %s with %d pantry staples and %d recipes",
			*email, len(pantryStaples.Items), len(demoRecipes))
		return
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	username := "demo"
	user, err := db.CreateUser(ctx, *email, string(hash), &username)
	if err != nil {
		log.Fatalf("Failed to create demo user (already seeded?): %v", err)
	}
	log.Printf("Created user %s (id=%d)", user.Email, user.ID)

	created, err := db.BulkCreatePantry(ctx, user.ID, &pantryStaples)
	if err != nil {
		log.Fatalf("Failed to seed pantry: %v", err)
	}
	log.Printf("Seeded %d pantry staples", len(created))

	for _, req := range demoRecipes {
		recipe, err := db.CreateRecipe(ctx, user.ID, &req)
		if err != nil {
			log.Fatalf("Failed to create recipe %q: %v", req.Name, err)
		}
		log.Printf("Created recipe %q (id=%d, %d ingredients)", recipe.Name, recipe.ID, len(recipe.Ingredients))
	}

	fmt.Printf("\nDemo household ready. Log in with %s / %s\n", *email, *password)
}

var pantryStaples = models.BulkPantryRequest{
	Items: []models.CreatePantryRequest{
		{Name: "Flour", Status: models.PantryStatusHave},
		{Name: "Sugar", Status: models.PantryStatusHave},
		{Name: "Salt", Status: models.PantryStatusHave},
		{Name: "Black pepper", Status: models.PantryStatusHave},
		{Name: "Olive oil", Status: models.PantryStatusLow},
		{Name: "Butter", Status: models.PantryStatusHave},
		{Name: "Eggs", Status: models.PantryStatusLow},
		{Name: "Milk", Status: models.PantryStatusOut},
		{Name: "Garlic", Status: models.PantryStatusHave},
		{Name: "Onions", Status: models.PantryStatusHave},
		{Name: "Rice", Status: models.PantryStatusHave},
		{Name: "Soy sauce", Status: models.PantryStatusHave, PreferredStore: ptr("Asian Market")},
	},
}

var demoRecipes = []models.CreateRecipeRequest{
	{
		Name:     "Weeknight Stir Fry",
		Servings: intPtr(4),
		Ingredients: []models.CreateIngredientRequest{
			{Name: "2 cups rice"},
			{Name: "1 lb chicken thighs", Quantity: ptr("1 lb")},
			{Name: "Soy sauce", Quantity: ptr("3 tbsp")},
			{Name: "2 cloves garlic"},
			{Name: "1 head broccoli"},
			{Name: "Sesame oil", Quantity: ptr("1 tbsp"), StorePreference: ptr("Asian Market")},
			{Name: "1 cup water"},
		},
	},
	{
		Name:     "Sunday Pancakes",
		Servings: intPtr(2),
		Ingredients: []models.CreateIngredientRequest{
			{Name: "2 cups flour"},
			{Name: "2 eggs"},
			{Name: "1 1/2 cups milk"},
			{Name: "2 tbsp sugar"},
			{Name: "1 tsp salt"},
			{Name: "Butter", Quantity: ptr("2 tbsp")},
			{Name: "Maple syrup", Quantity: ptr("to taste")},
		},
	},
	{
		Name:     "Tomato Soup",
		Servings: intPtr(4),
		Ingredients: []models.CreateIngredientRequest{
			{Name: "6 tomatoes, ripe"},
			{Name: "1 onion"},
			{Name: "2 cloves garlic"},
			{Name: "Olive oil", Quantity: ptr("2 tbsp")},
			{Name: "4 cups water"},
			{Name: "Heavy cream", Quantity: ptr("1/2 cup")},
		},
	},
}

func ptr(s string) *string { return &s }
func intPtr(i int) *int    { return &i }
