package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/lantern/pkg/api"
	"github.com/dshills/lantern/pkg/cli"
	"github.com/dshills/lantern/pkg/execution"
	"github.com/dshills/lantern/pkg/graph"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	graphDir := flag.String("graphs", "", "directory of graph definition YAML files to load")
	flag.Parse()

	store := graph.NewMemoryStore()
	registry := cli.NewDemoRegistry()

	if *graphDir != "" {
		if err := loadGraphs(store, registry, *graphDir); err != nil {
			log.Fatalf("load graphs: %v", err)
		}
	}

	engine := execution.NewEngine(store, execution.Options{})
	app := api.New(engine)

	log.Printf("lanternd listening on %s", *addr)
	if err := app.Listen(*addr); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

// loadGraphs parses every YAML file in dir into the store.
func loadGraphs(store graph.Store, registry *graph.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		g, err := graph.ParseFile(path, registry)
		if err != nil {
			return err
		}

		id, err := store.Create(context.Background(), g)
		if err != nil {
			return err
		}
		log.Printf("loaded graph %s from %s", id, path)
	}

	return nil
}
