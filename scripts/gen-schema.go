//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/svallory/hypergen/pkg/recipe"
)

func main() {
	data, err := recipe.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/recipe-v1.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/recipe-v1.json")
}
