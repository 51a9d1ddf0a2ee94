package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"webcam-motion/internal/infrastructure/codec"
)

func main() {
	var (
		path   = flag.String("path", "", "путь к CBOR журналу событий")
		limit  = flag.Int("limit", 0, "сколько событий вывести (0 - все)")
		asJSON = flag.Bool("json", false, "выводить события в JSON")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	events, err := codec.ReadLogFile(*path)
	if err != nil {
		log.Fatalf("read log: %v", err)
	}
	if *limit > 0 && len(events) > *limit {
		events = events[:*limit]
	}

	for i, event := range events {
		if *asJSON {
			pretty, err := json.MarshalIndent(event, "", "  ")
			if err != nil {
				log.Printf("event %d: JSON encode error: %v", i, err)
				continue
			}
			fmt.Println(string(pretty))
			continue
		}
		fmt.Printf("%d %s id=%s centroid=(%.1f, %.1f) pixels=%d\n",
			i, event.Time.Format("2006-01-02T15:04:05.000Z07:00"), event.ID, event.Centroid.X, event.Centroid.Y, event.Pixels)
	}
	log.Printf("events: %d", len(events))
}
