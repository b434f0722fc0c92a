package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"shoplist/internal/app"
	"shoplist/internal/config"
	"shoplist/internal/recipes"
)

type pantryItem struct {
	name string
	unit string
	min  int
	max  int
}

var pantry = []pantryItem{
	{"Tomates", "u", 1, 6},
	{"Oignons", "u", 1, 3},
	{"Ail", "u", 1, 4},
	{"Farine", "g", 100, 500},
	{"Beurre", "g", 20, 250},
	{"Sucre", "g", 30, 200},
	{"Oeufs", "u", 1, 6},
	{"Lait", "cl", 10, 100},
	{"Crème", "cl", 10, 40},
	{"Pâtes", "g", 200, 500},
	{"Riz", "g", 150, 400},
	{"Lardons", "g", 100, 250},
	{"Poireaux", "u", 1, 4},
	{"Pommes de terre", "g", 300, 1200},
	{"Carottes", "u", 1, 5},
	{"Huile d'olive", "cl", 1, 10},
	{"Choux", "u", 1, 2},
	{"Noix", "g", 30, 150},
}

var dishes = []string{
	"Quiche", "Gratin", "Soupe", "Tarte", "Risotto", "Omelette", "Crêpes", "Ratatouille",
	"Velouté", "Gâteau", "Salade", "Pot-au-feu",
}

func main() {
	var (
		count      int
		outputFile string
		configPath string
		seed       int64
	)
	flag.IntVar(&count, "count", 10, "number of recipes to generate")
	flag.StringVar(&outputFile, "output", "", "write recipes as YAML to this file instead of the store")
	flag.StringVar(&configPath, "config", "", "YAML config file (store mode)")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	drafts := generateRecipes(count, rand.New(rand.NewSource(seed)))

	var err error
	if outputFile != "" {
		err = writeYAML(drafts, outputFile)
	} else {
		err = writeStore(drafts, configPath)
	}
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func generateRecipes(count int, rnd *rand.Rand) []recipes.Draft {
	out := make([]recipes.Draft, 0, count)
	for i := 0; i < count; i++ {
		d := recipes.Draft{
			Name:        fmt.Sprintf("%s n°%d", dishes[rnd.Intn(len(dishes))], i+1),
			Description: "Recette générée",
			Steps:       []string{"Préparer les ingrédients", "Cuire", "Servir"},
		}
		n := 2 + rnd.Intn(4)
		for _, idx := range rnd.Perm(len(pantry))[:n] {
			p := pantry[idx]
			d.Ingredients = append(d.Ingredients, recipes.Line{
				Name:     p.name,
				Quantity: float64(p.min + rnd.Intn(p.max-p.min+1)),
				Unit:     p.unit,
			})
		}
		out = append(out, d)
	}
	return out
}

func writeYAML(drafts []recipes.Draft, outputFile string) error {
	b, err := yaml.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(outputFile, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	log.Printf("generated %d recipes to %s", len(drafts), outputFile)
	return nil
}

func writeStore(drafts []recipes.Draft, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	for i, d := range drafts {
		if _, err := a.Recipes.Create(d); err != nil {
			return fmt.Errorf("create recipe %d: %w", i+1, err)
		}
	}
	log.Printf("seeded %d recipes into %s store at %s", len(drafts), cfg.StateBackend, cfg.DataDir)
	return nil
}
