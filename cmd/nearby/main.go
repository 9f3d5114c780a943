// Command nearby asks a restaurant-finder server for the places around a
// position and prints them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mohammed-shakir/restaurant-finder/internal/client"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/httpclient"
	"github.com/mohammed-shakir/restaurant-finder/internal/core/model"
	"github.com/mohammed-shakir/restaurant-finder/internal/logger"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func main() {
	os.Exit(run())
}

func run() int {
	server := flag.String("server", getenv("RESTAURANT_FINDER_URL", "http://localhost:5000"), "restaurant-finder base URL")
	lat := flag.String("lat", getenv("NEARBY_LAT", ""), "latitude of the current position")
	lng := flag.String("lng", getenv("NEARBY_LNG", ""), "longitude of the current position")
	flag.Parse()

	zl := logger.Build(logger.Config{
		Level:     getenv("LOG_LEVEL", "warn"),
		Console:   true,
		Service:   "restaurant-finder",
		Component: "nearby",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := staticLocator(*lat, *lng)
	if err != nil {
		log.Error("bad position flags", "err", err)
		return 2
	}

	at, err := client.Locate(ctx, loc, client.DefaultPositionOptions())
	if err != nil {
		log.Debug("locate failed", "err", err)
		fmt.Fprintln(os.Stderr, client.UserMessage(err))
		return 1
	}

	api, err := client.NewAPI(*server, httpclient.NewOutbound(90*time.Second))
	if err != nil {
		log.Error("api client", "err", err)
		return 2
	}

	list, err := api.Restaurants(ctx, at)
	if err != nil {
		log.Error("fetch restaurants", "err", err, "server", *server)
		fmt.Fprintln(os.Stderr, client.MsgFetchFailed)
		return 1
	}

	if err := client.Render(os.Stdout, at, list); err != nil {
		log.Error("render", "err", err)
		return 1
	}
	return 0
}

// both empty means no position is available
func staticLocator(lat, lng string) (client.StaticLocator, error) {
	if lat == "" && lng == "" {
		return client.StaticLocator{}, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return client.StaticLocator{}, fmt.Errorf("lat: %w", err)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return client.StaticLocator{}, fmt.Errorf("lng: %w", err)
	}
	return client.StaticLocator{At: &model.Coordinate{Lat: la, Lng: ln}}, nil
}
